package examples

import "crmagent/internal/payload"

// ItemResult хранит результат обработки одного элемента пакета: значение или ошибку.
type ItemResult struct {
	Label string
	Value payload.Value
	Err   error
}

func (r ItemResult) OK() bool { return r.Err == nil }

// Summary содержит сводку по пакету.
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize считает успешные и неуспешные элементы.
func Summarize(results []ItemResult) Summary {
	var s Summary
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Each применяет fn к каждому элементу. Ошибка одного элемента не прерывает остальные.
// after, если задан, вызывается сразу после каждого элемента.
func Each[T any](items []T, label func(T) string, fn func(T) (payload.Value, error), after func(T, ItemResult)) []ItemResult {
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		v, err := fn(item)
		res := ItemResult{Label: label(item), Value: v, Err: err}
		results = append(results, res)
		if after != nil {
			after(item, res)
		}
	}
	return results
}
