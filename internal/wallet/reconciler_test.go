package wallet

import (
	"errors"
	"testing"

	"bjl-server/internal/queue"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		resp *Response
		err  error
		want queue.Result
	}{
		{"success", &Response{Code: 200}, nil, queue.Done},
		{"network error", nil, errors.New("timeout"), queue.Retry},
		{"nil response", nil, nil, queue.Retry},
		{"duplicate transaction", &Response{Code: 400, ErrorCode: "DUPLICATE_TRANSACTION"}, nil, queue.Fatal},
		{"user not found", &Response{Code: 400, ErrorCode: "USER_NOT_FOUND"}, nil, queue.Fatal},
		{"insufficient balance", &Response{Code: 400, ErrorCode: "INSUFFICIENT_BALANCE"}, nil, queue.Fatal},
		{"unknown business error", &Response{Code: 500, ErrorCode: "SOMETHING_ELSE"}, nil, queue.Retry},
		{"error wins over response", &Response{Code: 200}, errors.New("read: reset"), queue.Retry},
	}

	for _, c := range cases {
		if got := Classify(c.resp, c.err); got != c.want {
			t.Errorf("%s: Classify = %v, want %v", c.name, got, c.want)
		}
	}
}
