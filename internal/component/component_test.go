package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fake struct{ name string }

func TestRegistryUnknownTypeIsLookupError(t *testing.T) {
	reg := NewRegistry[*fake]("widget")
	_, err := reg.New("nope", nil)
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "widget", nf.Kind)
	assert.Equal(t, "nope", nf.Type)
}

func TestRegistryConstructionErrorPropagates(t *testing.T) {
	reg := NewRegistry[*fake]("widget")
	boom := errors.New("bad option")
	reg.Register("broken", TypeSpec[*fake]{
		Constructor: func(map[string]string) (*fake, error) { return nil, boom },
	})

	_, err := reg.New("broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRegisterOverridesExisting(t *testing.T) {
	reg := NewRegistry[*fake]("widget")
	reg.Register("w", TypeSpec[*fake]{
		Constructor: func(map[string]string) (*fake, error) { return &fake{name: "first"}, nil },
	})
	reg.Register("w", TypeSpec[*fake]{
		Constructor: func(map[string]string) (*fake, error) { return &fake{name: "second"}, nil },
	})

	w, err := reg.New("w", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", w.name)
}
