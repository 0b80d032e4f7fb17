package grpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

func TestStatusErrorMapsTypedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid argument", &k8s.InvalidArgumentError{Msg: "bad"}, codes.InvalidArgument},
		{"not found", &k8s.NotFoundError{Msg: "missing"}, codes.NotFound},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(StatusError(tc.err))
			require.True(t, ok)
			require.Equal(t, tc.want, st.Code())
		})
	}
}

func TestStatusErrorNilIsNil(t *testing.T) {
	require.NoError(t, StatusError(nil))
}
