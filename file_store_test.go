package selcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// soloCoord returns a coordinator for a group of one, enough to drive the
// collective store API from a single test goroutine.
func soloCoord(t *testing.T) Coordinator {
	t.Helper()
	workers, err := NewLocalGroup(1)
	require.NoError(t, err)
	return workers[0]
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)

	dims := []uint64{2, 3}
	ds, err := fs.CreateDataset("dset", dims, Int32)
	require.NoError(t, err)
	assert.Equal(t, "dset", ds.Name())
	assert.Equal(t, dims, ds.Dims())
	assert.Equal(t, Int32, ds.ElementType())

	buf := FillInt32(6, func(pos uint64) int32 { return int32(pos) * 10 })
	require.NoError(t, ds.Write(All, All, dims, buf))
	require.NoError(t, ds.Close())
	require.NoError(t, fs.Close())

	// Reopen and read back.
	fs, err = OpenFileStore(path, c, false)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	ds, err = fs.OpenDataset("dset")
	require.NoError(t, err)
	assert.Equal(t, dims, ds.Dims())

	got := make([]byte, 4*6)
	require.NoError(t, ds.Read(All, All, dims, got))
	assert.Equal(t, BytesInt32(buf), BytesInt32(got))
	require.NoError(t, ds.Close())
}

func TestFileStoreNewDatasetIsZeroFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	ds, err := fs.CreateDataset("zeros", []uint64{8}, Int32)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	buf := FillInt32(8, func(uint64) int32 { return -1 })
	require.NoError(t, ds.Read(All, All, []uint64{8}, buf))
	for i, v := range BytesInt32(buf) {
		assert.Zerof(t, v, "element %d", i)
	}
}

func TestFileStoreMultipleDatasets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	d1, err := fs.CreateDataset("first", []uint64{4}, Int32)
	require.NoError(t, err)
	d2, err := fs.CreateDataset("second", []uint64{2, 2}, Int64)
	require.NoError(t, err)

	require.NoError(t, d1.Write(All, All, []uint64{4}, FillInt32(4, func(pos uint64) int32 { return int32(pos) })))
	require.NoError(t, d1.Close())
	require.NoError(t, d2.Close())

	// The record chain survives interleaved creation.
	d1, err = fs.OpenDataset("first")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, d1.Dims())
	require.NoError(t, d1.Close())

	d2, err = fs.OpenDataset("second")
	require.NoError(t, err)
	assert.Equal(t, Int64, d2.ElementType())
	require.NoError(t, d2.Close())
}

func TestFileStoreDuplicateDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	_, err = fs.CreateDataset("dset", []uint64{4}, Int32)
	require.NoError(t, err)

	_, err = fs.CreateDataset("dset", []uint64{4}, Int32)
	require.Error(t, err)

	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "create", ioe.Op)
}

func TestFileStoreUnknownDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	_, err = fs.OpenDataset("nope")
	require.Error(t, err)
}

func TestFileStoreReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdonly.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	_, err = fs.CreateDataset("dset", []uint64{4}, Int32)
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	fs, err = OpenFileStore(path, c, true)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	_, err = fs.CreateDataset("other", []uint64{4}, Int32)
	require.Error(t, err)

	ds, err := fs.OpenDataset("dset")
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	err = ds.Write(All, All, []uint64{4}, FillInt32(4, func(uint64) int32 { return 1 }))
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)

	// Reads still work.
	buf := make([]byte, 16)
	require.NoError(t, ds.Read(All, All, []uint64{4}, buf))
}

func TestFileStoreHoleTransfer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hole.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	dims := []uint64{1, 4}
	ds, err := fs.CreateDataset("dset", dims, Int32)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	// Write through the even offsets of a hole buffer.
	slab, err := RowSlab(0, 1, dims)
	require.NoError(t, err)
	holes := HoleInt32(4, func(pos uint64) int32 { return int32(pos) + 100 })
	require.NoError(t, ds.Write(slab, EvenPoints(4), []uint64{8}, holes))

	full := make([]byte, 16)
	require.NoError(t, ds.Read(All, All, dims, full))
	assert.Equal(t, []int32{100, 101, 102, 103}, BytesInt32(full))

	// Read back through the strided form; unselected odd offsets must keep
	// their sentinel.
	back := FillInt32(8, func(uint64) int32 { return -7 })
	require.NoError(t, ds.Read(slab, EvenStrideSlab(4), []uint64{8}, back))
	assert.Equal(t, []int32{100, -7, 101, -7, 102, -7, 103, -7}, BytesInt32(back))
}

func TestFileStoreCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	ds, err := fs.CreateDataset("dset", []uint64{6}, Int32)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	err = ds.Write(All, All, []uint64{4}, make([]byte, 16))
	var mismatch *CountMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestFileStoreShortBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.store")
	c := soloCoord(t)

	fs, err := CreateFileStore(path, c)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	ds, err := fs.CreateDataset("dset", []uint64{4}, Int32)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	err = ds.Write(All, All, []uint64{4}, make([]byte, 8))
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
}

func TestOpenFileStoreRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.store")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a store"), 0o644))

	_, err := OpenFileStore(path, soloCoord(t), false)
	require.Error(t, err)
}

func TestFileStoreCollectiveRowWrites(t *testing.T) {
	const workers = 3
	path := filepath.Join(t.TempDir(), "collective.store")
	dims := []uint64{workers, 4}

	err := RunGroup(workers, func(c Coordinator) error {
		fs, err := CreateFileStore(path, c)
		if err != nil {
			return err
		}
		ds, err := fs.CreateDataset("rows", dims, Int32)
		if err != nil {
			return err
		}

		slab, err := RowSlab(c.WorkerID(), workers, dims)
		if err != nil {
			return err
		}
		buf := FillInt32(4, func(uint64) int32 { return int32(c.WorkerID()) })
		if err := ds.Write(slab, All, []uint64{4}, buf); err != nil {
			return err
		}
		if err := ds.Close(); err != nil {
			return err
		}
		return fs.Close()
	})
	require.NoError(t, err)

	// Every worker's row landed; check through a fresh read-only open.
	fs, err := OpenFileStore(path, soloCoord(t), true)
	require.NoError(t, err)
	defer func() { require.NoError(t, fs.Close()) }()

	ds, err := fs.OpenDataset("rows")
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	buf := make([]byte, 4*workers*4)
	require.NoError(t, ds.Read(All, All, dims, buf))
	for pos, v := range BytesInt32(buf) {
		assert.Equalf(t, int32(pos/4), v, "element %d", pos)
	}
}
