package hclspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridfeed/internal/registry"
	"github.com/vk/gridfeed/modules"
)

func testRegistry() *registry.Registry {
	r := registry.New()
	modules.RegisterAll(r)
	return r
}

const readerResize = `
pipeline {
  batch_size  = 2
  num_threads = 2
  seed        = 42

  op "reader" "frames" {
    count  = 4
    height = 8
    width  = 8
  }
  op "resize" "small" {
    inputs   = ["frames"]
    resize_x = 4
    resize_y = 2
  }
  outputs = ["small"]
}
`

func TestParse(t *testing.T) {
	t.Run("builds and runs a reader-resize chain", func(t *testing.T) {
		p, err := ParseWith([]byte(readerResize), "test.hcl", testRegistry())
		require.NoError(t, err)
		defer p.Release()

		res, err := p.Run()
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, 2, res[0].Len())
		s, err := res[0].At(0)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 1}, s.Shape())
	})

	t.Run("missing pipeline block", func(t *testing.T) {
		_, err := ParseWith([]byte(`seed = 1`), "test.hcl", testRegistry())
		assert.Error(t, err)
	})

	t.Run("unknown input op", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "resize" "r" {
    inputs   = ["ghost"]
    resize_x = 2
    resize_y = 2
  }
  outputs = ["r"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "unknown op 'ghost'")
	})

	t.Run("unknown output reference", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 1 }
  outputs = ["nope"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "unknown op 'nope'")
	})

	t.Run("out-of-range output index", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 1 }
  outputs = ["frames.3"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("inputs must reference earlier ops", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "rotate" "r" {
    inputs = ["frames"]
    angle  = 90
  }
  op "reader" "frames" { count = 1 }
  outputs = ["r"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "unknown op 'frames'")
	})

	t.Run("bad operator argument surfaces the schema error", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 1 }
  op "rotate" "r" {
    inputs = ["frames"]
    angle  = 45
  }
  outputs = ["r"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "multiple of 90")
	})

	t.Run("duplicate op name", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 1 }
  op "reader" "frames" { count = 2 }
  outputs = ["frames"]
}
`
		_, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("constant op joins the outputs", func(t *testing.T) {
		src := `
pipeline {
  batch_size = 1
  op "reader" "frames" { count = 1 }
  op "constant" "ninety" { value = 90 }
  outputs = ["frames", "ninety"]
}
`
		p, err := ParseWith([]byte(src), "test.hcl", testRegistry())
		require.NoError(t, err)
		defer p.Release()

		res, err := p.Run()
		require.NoError(t, err)
		require.Len(t, res, 2)
		s, err := res[1].At(0)
		require.NoError(t, err)
		assert.Equal(t, []int64{90}, s.Data())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipe.hcl")
	require.NoError(t, os.WriteFile(path, []byte(readerResize), 0o644))

	p, err := LoadWith(path, testRegistry())
	require.NoError(t, err)
	defer p.Release()

	res, err := p.Run()
	require.NoError(t, err)
	require.Len(t, res, 1)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWith(filepath.Join(dir, "absent.hcl"), testRegistry())
		assert.ErrorContains(t, err, "failed to parse pipeline file")
	})
}
