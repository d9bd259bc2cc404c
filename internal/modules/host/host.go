// Package host собирает сведения для команды doctor: узел, путь к CLI и источник ключа.
package host

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Report описывает результат проверки окружения.
type Report struct {
	Hostname    string     `json:"hostname"`
	Platform    string     `json:"platform"`
	PlatformVer string     `json:"platformVer"`
	Kernel      string     `json:"kernel"`
	BootTime    string     `json:"boot_time"`
	MemUsedPct  float64    `json:"mem_used_pct"`
	Tool        ToolStatus `json:"tool"`
	Credentials string     `json:"credentials"`
}

// ToolStatus описывает найденный (или нет) исполняемый файл CLI.
type ToolStatus struct {
	Binary string `json:"binary"`
	Path   string `json:"path,omitempty"`
	Found  bool   `json:"found"`
	Error  string `json:"error,omitempty"`
}

// Healthy сообщает, что CLI найден и ключ откуда-то берется.
func (r Report) Healthy() bool {
	return r.Tool.Found && r.Credentials != "none"
}

// Checker выполняет проверку; поля с функциями подменяются в тестах.
type Checker struct {
	LookPath func(file string) (string, error)
	Info     func(ctx context.Context) (*host.InfoStat, error)
	Memory   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewChecker возвращает проверку на реальных gopsutil и exec.LookPath.
func NewChecker() *Checker {
	return &Checker{
		LookPath: exec.LookPath,
		Info:     host.InfoWithContext,
		Memory:   mem.VirtualMemoryWithContext,
	}
}

// Check собирает отчет. Отсутствие CLI отражается в отчете, а не ошибкой.
func (c *Checker) Check(ctx context.Context, binary, credentials string) (Report, error) {
	hInfo, err := c.Info(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := c.Memory(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("memory info: %w", err)
	}

	rep := Report{
		Hostname:    hInfo.Hostname,
		Platform:    hInfo.Platform,
		PlatformVer: hInfo.PlatformVersion,
		Kernel:      hInfo.KernelVersion,
		BootTime:    time.Unix(int64(hInfo.BootTime), 0).UTC().Format(time.RFC3339),
		MemUsedPct:  vm.UsedPercent,
		Tool:        ToolStatus{Binary: binary},
		Credentials: credentials,
	}
	path, err := c.LookPath(binary)
	if err != nil {
		rep.Tool.Error = err.Error()
		return rep, nil
	}
	rep.Tool.Path = path
	rep.Tool.Found = true
	return rep, nil
}
