package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Vocabulary(t *testing.T) {
	r := Default()
	assert.Len(t, r.Names(), 13)

	var advertised []string
	for _, d := range r.Advertised() {
		advertised = append(advertised, d.Name())
	}
	assert.Equal(t, []string{"Button", "Card", "Input", "Table", "Modal", "Sidebar", "Navbar", "Chart"}, advertised)

	_, ok := r.Lookup("Text")
	assert.True(t, ok)
	_, ok = r.Lookup("button")
	assert.False(t, ok)
	_, ok = r.Lookup("Carousel")
	assert.False(t, ok)
}

func TestMissing_RequiredProps(t *testing.T) {
	r := Default()

	in, _ := r.Lookup("Input")
	assert.Equal(t, []string{"label", "placeholder"}, in.Missing(nil))
	assert.Equal(t, []string{"placeholder"}, in.Missing(map[string]any{"label": "Email", "placeholder": "  "}))
	assert.Empty(t, in.Missing(map[string]any{"label": "Email", "placeholder": "you@example.com"}))

	btn, _ := r.Lookup("Button")
	assert.Equal(t, []string{"label"}, btn.Missing(map[string]any{"variant": "primary"}))
	assert.True(t, btn.Accepts("onClick"))
	assert.False(t, btn.Accepts("href"))

	card, _ := r.Lookup("Card")
	assert.Empty(t, card.Missing(map[string]any{}))
	assert.Equal(t, []string{"title"}, card.Missing(map[string]any{"title": ""}))
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("components:\n  - name: A\n  - name: A\n"))
	require.Error(t, err)

	_, err = Parse([]byte("components:\n  - description: nameless\n"))
	require.Error(t, err)

	_, err = Parse([]byte("components: [oops"))
	require.Error(t, err)
}

func TestDescriptors_Sorted(t *testing.T) {
	ds := Default().Descriptors()
	require.NotEmpty(t, ds)
	for i := 1; i < len(ds); i++ {
		assert.Less(t, ds[i-1].Name(), ds[i].Name())
	}
	in, _ := Default().Descriptor("Input")
	assert.Equal(t, []string{"label", "placeholder"}, in.RequiredNames())
}
