package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceCopy(t *testing.T) {
	var written []string
	service := &Service{write: func(text string) error {
		written = append(written, text)
		return nil
	}}
	require.NoError(t, service.Copy("report"))
	require.NoError(t, service.Copy(""))
	require.Equal(t, []string{"report"}, written)
}

func TestServiceCopyReportsFailures(t *testing.T) {
	unsupported := &Service{unsupported: true, write: func(string) error { return nil }}
	require.ErrorIs(t, unsupported.Copy("report"), ErrUnavailable)

	failing := &Service{write: func(string) error { return errors.New("xclip exited") }}
	err := failing.Copy("report")
	require.Error(t, err)
	require.Contains(t, err.Error(), "xclip exited")
}
