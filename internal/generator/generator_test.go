package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/particle"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid response", func(t *testing.T) {
		d, err := Decode([]byte(`{"name": "tnt", "color": [255, 60, 30.0], "behavior": "explodes", "interactions": "fire", "action_code": "doGravity(x, y, i);"}`))
		require.NoError(t, err)
		want := particle.Description{
			Name:         "TNT",
			Color:        particle.Color{255, 60, 30},
			Behavior:     "explodes",
			Interactions: "fire",
			ActionCode:   "doGravity(x, y, i);",
		}
		if diff := cmp.Diff(want, d); diff != "" {
			t.Errorf("description mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("channels are clamped", func(t *testing.T) {
		d, err := Decode([]byte(`{"name": "x", "color": [300, -4, 12], "action_code": "a"}`))
		require.NoError(t, err)
		assert.Equal(t, particle.Color{255, 0, 12}, d.Color)
	})

	t.Run("huge channels clamp to the edges", func(t *testing.T) {
		d, err := Decode([]byte(`{"name": "x", "color": [1e30, -1e30, 9007199254740993], "action_code": "a"}`))
		require.NoError(t, err)
		assert.Equal(t, particle.Color{255, 0, 255}, d.Color)
	})

	cases := map[string]struct {
		body string
		is   error
	}{
		"not json":         {body: `{"name":`},
		"missing name":     {body: `{"color": [1,2,3], "action_code": "a"}`, is: particle.ErrMissingField},
		"missing action":   {body: `{"name": "A", "color": [1,2,3]}`, is: particle.ErrMissingField},
		"missing color":    {body: `{"name": "A", "action_code": "a"}`, is: particle.ErrMissingField},
		"two channels":     {body: `{"name": "A", "color": [1,2], "action_code": "a"}`, is: particle.ErrMalformedColor},
		"string color":     {body: `{"name": "A", "color": "red", "action_code": "a"}`, is: particle.ErrMalformedColor},
		"fractional color": {body: `{"name": "A", "color": [1.5,2,3], "action_code": "a"}`, is: particle.ErrMalformedColor},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(tc.body))
			require.Error(t, err)
			var genErr *particle.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "decode", genErr.Op)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestDecodeValue(t *testing.T) {
	d, err := DecodeValue(map[string]any{"name": "cloud", "color": []any{230.0, 230.0, 250.0}, "action_code": "doRise(x, y, i);"})
	require.NoError(t, err)
	assert.Equal(t, "CLOUD", d.Name)
	assert.Equal(t, particle.Color{230, 230, 250}, d.Color)

	_, err = DecodeValue(nil)
	assert.Error(t, err)
}

type stubModule struct{ kind string }

func (m stubModule) Register(b *Backends) {
	b.RegisterBackend(m.kind, func(_ context.Context, opts Options) (Generator, error) {
		if opts.URL == "" {
			return nil, errors.New("url required")
		}
		return Func(func(_ context.Context, name string) (particle.Description, error) {
			return particle.Description{Name: name, ActionCode: opts.URL}, nil
		}), nil
	})
}

func TestBackends(t *testing.T) {
	b := NewBackends().Install(stubModule{"b"}, stubModule{"a"})
	ctx := context.Background()

	assert.Equal(t, []string{"a", "b"}, b.Kinds())

	gen, err := b.New(ctx, "a", Options{URL: "u"})
	require.NoError(t, err)
	d, err := gen.Generate(ctx, "SAND2")
	require.NoError(t, err)
	assert.Equal(t, "u", d.ActionCode)

	_, err = b.New(ctx, "a", Options{})
	assert.EqualError(t, err, "url required")

	_, err = b.New(ctx, "zzz", Options{})
	assert.ErrorContains(t, err, "unknown generator backend")

	assert.Panics(t, func() { stubModule{"a"}.Register(b) })
}

func TestOptionsTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Options{}.TimeoutOrDefault())
	assert.Equal(t, int64(5), int64(Options{Timeout: 5}.TimeoutOrDefault()))
}
