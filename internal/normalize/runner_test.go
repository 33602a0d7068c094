package normalize

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", string(b.buf))
	assert.Equal(t, 3, b.dropped)

	_, _ = b.Write([]byte("zz"))
	assert.Equal(t, "abcde", string(b.buf))
	assert.Equal(t, 5, b.dropped)
}

func TestExecRunner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	r := execRunner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	out, _, err := r.Run(context.Background(), sh, "-c", "printf 'Замена масла'")
	require.NoError(t, err)
	assert.Equal(t, "Замена масла", string(out))

	_, errb, err := r.Run(context.Background(), sh, "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, string(errb), "broken")
}
