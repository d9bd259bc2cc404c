package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResponseJSON(t *testing.T) {
	buf, err := json.Marshal(OK(map[string]string{"id": "1"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(buf) != `{"status":"ok","data":{"id":"1"}}` {
		t.Fatalf("unexpected json: %s", buf)
	}

	buf, _ = json.Marshal(Fail(CodeDecodeFailed, errors.New("bad json")))
	if string(buf) != `{"status":"error","error_code":"decode_failed","error":"bad json"}` {
		t.Fatalf("unexpected json: %s", buf)
	}
}
