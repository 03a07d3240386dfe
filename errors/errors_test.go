package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"invalid weights", New(ErrInvalidWeights, "bad weights"), KindValidation},
		{"malformed address", New(ErrMalformedAddress, "bad wallet"), KindValidation},
		{"rejection", New(ErrExternalRejection, "banned"), KindRejection},
		{"transport", Wrap(fmt.Errorf("dial tcp"), ErrTransport, "list failed"), KindTransport},
		{"cancelled", New(ErrUserCancelled, "rejected in wallet"), KindCancelled},
		{"network", New(ErrNetworkMismatch, "wrong chain"), KindNetwork},
		{"wrapped by fmt", fmt.Errorf("approve: %w", New(ErrUserCancelled, "rejected")), KindCancelled},
		{"plain error", stderrors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("settle: %w", Wrap(stderrors.New("rpc down"), ErrSettlementFailed, "batch transfer failed"))
	if !HasCode(err, ErrSettlementFailed) {
		t.Errorf("expected ErrSettlementFailed in chain")
	}
	if HasCode(err, ErrUserCancelled) {
		t.Errorf("did not expect ErrUserCancelled in chain")
	}
	if GetCode(nil) != 0 {
		t.Errorf("expected 0 for nil error")
	}
}
