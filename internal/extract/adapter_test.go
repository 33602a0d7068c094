package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/llm"
	"github.com/joseph-ayodele/repair-orders/internal/normalize"
)

type fakeNormalizer struct {
	payload normalize.Payload
	err     error
	panics  bool
}

func (f fakeNormalizer) Normalize(context.Context, string) (normalize.Payload, error) {
	if f.panics {
		panic("corrupt header")
	}
	return f.payload, f.err
}

type fakeExtractor struct {
	answer string
	err    error
	got    llm.Request
	hasDL  bool
}

func (f *fakeExtractor) Extract(ctx context.Context, req llm.Request) (string, error) {
	f.got = req
	_, f.hasDL = ctx.Deadline()
	return f.answer, f.err
}

func TestAdapter_FromFileHappyPath(t *testing.T) {
	x := &fakeExtractor{answer: "```json\n{\"plate\":\"А1\",\"items\":[{\"workName\":\"Мойка\",\"quantity\":1,\"price\":500,\"total\":500}]}\n```"}
	a := NewAdapter(fakeNormalizer{payload: normalize.Payload{
		Kind: normalize.KindImage, ImageBase64: "AA", MimeType: "image/png", SourceName: "a.png",
	}}, x, time.Minute, nil, nil)

	got := a.FromFile(context.Background(), "/tmp/a.png")
	require.False(t, got.NeedsOperatorReview)
	require.Equal(t, "А1", got.Plate)
	require.Len(t, got.Items, 1)
	require.Equal(t, "AA", x.got.ImageBase64)
	require.NotEmpty(t, x.got.Instruction)
	require.True(t, x.hasDL)
}

func TestAdapter_NeverFails(t *testing.T) {
	convErr := fmt.Errorf("%w: pdftoppm exit 1", common.ErrDocumentConversion)
	cases := map[string]*Adapter{
		"conversion": NewAdapter(fakeNormalizer{err: convErr}, &fakeExtractor{}, 0, nil, nil),
		"panic":      NewAdapter(fakeNormalizer{panics: true}, &fakeExtractor{}, 0, nil, nil),
		"extraction": NewAdapter(fakeNormalizer{}, &fakeExtractor{err: errors.New("503")}, 0, nil, nil),
		"garbage":    NewAdapter(fakeNormalizer{}, &fakeExtractor{answer: "sorry"}, 0, nil, nil),
	}
	for name, a := range cases {
		got := a.FromFile(context.Background(), "/tmp/x.pdf")
		require.True(t, got.NeedsOperatorReview, name)
		require.NotNil(t, got.ReviewReason, name)
		require.NotNil(t, got.Items, name)
		require.Empty(t, got.Items, name)
	}
}
