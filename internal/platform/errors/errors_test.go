package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code Code
		want codes.Code
	}{
		{CodePlacementOccupied, codes.AlreadyExists},
		{CodePlacementOutOfBounds, codes.OutOfRange},
		{CodePlacementConstraintViolation, codes.FailedPrecondition},
		{CodePlacementEntityNotFound, codes.NotFound},
		{CodePlacementZoneNotFound, codes.NotFound},
		{CodePlacementInvalidRequest, codes.InvalidArgument},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range testCases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s grpc code = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestToGRPCStatusCarriesReasonAndMessage(t *testing.T) {
	t.Parallel()

	domainErr := WithMetadata(CodePlacementOccupied, "cell taken", map[string]string{"Zone": "soi6"})
	err := domainErr.ToGRPCStatus("en-US", "That spot is taken.")

	if got := status.Code(err); got != codes.AlreadyExists {
		t.Fatalf("status code = %s, want AlreadyExists", got)
	}
	reason, ok := ReasonOf(err)
	if !ok || reason != CodePlacementOccupied {
		t.Fatalf("reason = %q, %v", reason, ok)
	}
	msg, ok := LocalizedMessageOf(err)
	if !ok || msg != "That spot is taken." {
		t.Fatalf("localized message = %q, %v", msg, ok)
	}
}

func TestReasonOfPlainErrors(t *testing.T) {
	t.Parallel()

	if _, ok := ReasonOf(stderrors.New("boom")); ok {
		t.Fatal("plain error should carry no reason")
	}
	if _, ok := ReasonOf(status.Error(codes.Unavailable, "down")); ok {
		t.Fatal("status without details should carry no reason")
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("constraint")
	err := Wrap(CodePlacementConstraintViolation, "cross kind", cause)
	if !stderrors.Is(err, New(CodePlacementConstraintViolation, "")) {
		t.Fatal("expected code match")
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}
