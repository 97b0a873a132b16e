package db

import (
	"context"
	"errors"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx on bare context, got %v", tx)
	}
}

func TestNopTxRunner(t *testing.T) {
	var runner NopTxRunner

	ran := false
	if err := runner.InTx(context.Background(), func(ctx context.Context) error {
		ran = true
		if TxFromContext(ctx) != nil {
			t.Error("NopTxRunner must not bind a transaction")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("function was not invoked")
	}

	wantErr := errors.New("boom")
	if err := runner.InTx(context.Background(), func(context.Context) error {
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
