package selcheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/scigolib/selcheck/internal/utils"
)

// Signature identifies a selcheck store file.
const Signature = "SELSTOR\x01"

const dsetRecordMagic = "DSET"

// FileStore is the reference storage collaborator: a single file holding
// named datasets as contiguous row-major little-endian payloads, accessed by
// element-addressed ReadAt/WriteAt I/O.
//
// Metadata operations (store create/open/close, dataset create/open) are
// collective: every worker of the attached Coordinator group must call them
// in the same order, and each ends with a group-wide failure reduction so a
// failure on one worker is observed by all before the next collective call.
// Dataset Write and Read are independent: a worker may transfer on its own,
// and the engine latches their failures where the scenario requires it.
//
// Each worker holds its own FileStore backed by its own file descriptor;
// concurrent transfers from the group are safe because selections of one
// collective transfer address disjoint (or identical) byte ranges.
type FileStore struct {
	path     string
	coord    Coordinator
	f        *os.File
	readOnly bool
}

// dsetRecord locates one dataset inside the store file.
type dsetRecord struct {
	name         string
	elem         ElementType
	dims         []uint64
	payloadOff   uint64
	payloadBytes uint64
}

// CreateFileStore creates a fresh store file and opens it read-write on
// every worker. Collective. The designated worker writes the initial file
// atomically, so a half-created store is never observable.
func CreateFileStore(path string, coord Coordinator) (*FileStore, error) {
	var initErr error
	if Designated(coord.WorkerID(), FirstWorker) {
		initErr = atomic.WriteFile(path, bytes.NewReader([]byte(Signature)))
	}
	if ok := coord.AllReduceAnd(initErr == nil); !ok {
		if initErr != nil {
			return nil, ioErr("create", path, initErr)
		}
		return nil, collectiveErr("create", path)
	}

	return openFileStoreLocal(path, coord, false)
}

// OpenFileStore opens an existing store file on every worker. Collective.
func OpenFileStore(path string, coord Coordinator, readOnly bool) (*FileStore, error) {
	fs, err := openFileStoreLocal(path, coord, readOnly)
	if ok := coord.AllReduceAnd(err == nil); !ok {
		if err == nil {
			_ = fs.f.Close()
			return nil, collectiveErr("open", path)
		}
		return nil, err
	}
	return fs, nil
}

func openFileStoreLocal(path string, coord Coordinator, readOnly bool) (*FileStore, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	//nolint:gosec // G304: caller-provided store path is the point of the API
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, ioErr("open", path, err)
	}

	sig := make([]byte, len(Signature))
	if _, err := f.ReadAt(sig, 0); err != nil || string(sig) != Signature {
		_ = f.Close()
		return nil, ioErr("open", path, errors.New("not a selcheck store file"))
	}

	return &FileStore{path: path, coord: coord, f: f, readOnly: readOnly}, nil
}

// Close syncs and closes the store. Collective; safe to call once per open.
func (s *FileStore) Close() error {
	var err error
	if s.f != nil {
		if !s.readOnly {
			err = s.f.Sync()
		}
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
		s.f = nil // Prevent double close.
	}
	if ok := s.coord.AllReduceAnd(err == nil); !ok {
		if err != nil {
			return ioErr("close", s.path, err)
		}
		return collectiveErr("close", s.path)
	}
	return nil
}

// CreateDataset appends a zero-filled dataset to the store. Collective: the
// designated worker performs the append, then every worker locates the new
// record through its own descriptor.
func (s *FileStore) CreateDataset(name string, dims []uint64, elem ElementType) (Dataset, error) {
	var appendErr error
	if Designated(s.coord.WorkerID(), FirstWorker) {
		appendErr = s.appendDataset(name, dims, elem)
	}
	if ok := s.coord.AllReduceAnd(appendErr == nil); !ok {
		if appendErr != nil {
			return nil, ioErr("create", name, appendErr)
		}
		return nil, collectiveErr("create", name)
	}

	return s.openDatasetLocal(name)
}

// OpenDataset opens an existing dataset by name. Collective.
func (s *FileStore) OpenDataset(name string) (Dataset, error) {
	ds, err := s.openDatasetLocal(name)
	if ok := s.coord.AllReduceAnd(err == nil); !ok {
		if err == nil {
			return nil, collectiveErr("open", name)
		}
		return nil, err
	}
	return ds, nil
}

func (s *FileStore) openDatasetLocal(name string) (Dataset, error) {
	if s.f == nil {
		return nil, ioErr("open", name, errors.New("store is closed"))
	}
	records, err := s.readDirectory()
	if err != nil {
		return nil, ioErr("open", name, err)
	}
	for i := range records {
		if records[i].name == name {
			return &fileDataset{store: s, rec: records[i]}, nil
		}
	}
	return nil, ioErr("open", name, errors.New("dataset not found"))
}

// appendDataset writes a record header at EOF and extends the file to cover
// the zero-filled payload.
func (s *FileStore) appendDataset(name string, dims []uint64, elem ElementType) error {
	if s.readOnly {
		return errors.New("store is read-only")
	}
	if name == "" {
		return errors.New("dataset name must not be empty")
	}
	if len(name) > 0xFFFF {
		return errors.New("dataset name too long")
	}
	if len(dims) == 0 || len(dims) > 255 {
		return fmt.Errorf("dataset rank %d out of range", len(dims))
	}

	npoints, err := utils.Product(dims)
	if err != nil {
		return err
	}
	payloadBytes, err := utils.SafeMultiply(npoints, elem.Size())
	if err != nil {
		return err
	}
	if err := utils.ValidateBufferSize(payloadBytes, utils.MaxDatasetBytes, "dataset payload"); err != nil {
		return err
	}

	records, err := s.readDirectory()
	if err != nil {
		return err
	}
	eof := uint64(len(Signature))
	for i := range records {
		if records[i].name == name {
			return fmt.Errorf("dataset %q already exists", name)
		}
		eof = records[i].payloadOff + records[i].payloadBytes
	}

	hdr := encodeRecordHeader(name, dims, elem, payloadBytes)
	//nolint:gosec // G115: store offsets fit in int64 for io.WriterAt
	if _, err := s.f.WriteAt(hdr, int64(eof)); err != nil {
		return err
	}
	end := eof + uint64(len(hdr)) + payloadBytes
	//nolint:gosec // G115: store offsets fit in int64
	if err := s.f.Truncate(int64(end)); err != nil {
		return err
	}
	return s.f.Sync()
}

// encodeRecordHeader serializes one dataset record header.
func encodeRecordHeader(name string, dims []uint64, elem ElementType, payloadBytes uint64) []byte {
	size := len(dsetRecordMagic) + 2 + len(name) + 1 + 1 + 8*len(dims) + 8
	hdr := make([]byte, 0, size)
	hdr = append(hdr, dsetRecordMagic...)
	hdr = wire.AppendUint16(hdr, uint16(len(name)))
	hdr = append(hdr, name...)
	hdr = append(hdr, byte(elem), byte(len(dims)))
	for _, d := range dims {
		hdr = wire.AppendUint64(hdr, d)
	}
	hdr = wire.AppendUint64(hdr, payloadBytes)
	return hdr
}

// readDirectory scans the record chain from the signature to EOF.
func (s *FileStore) readDirectory() ([]dsetRecord, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return nil, utils.WrapError("stat store file", err)
	}
	//nolint:gosec // G115: file size is non-negative
	fileSize := uint64(fi.Size())

	var records []dsetRecord
	off := uint64(len(Signature))
	for off < fileSize {
		rec, next, err := s.readRecordAt(off, fileSize)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		off = next
	}
	return records, nil
}

// readRecordAt decodes the record header at off and returns the record plus
// the offset of the next one.
func (s *FileStore) readRecordAt(off, fileSize uint64) (dsetRecord, uint64, error) {
	var rec dsetRecord

	fixed := make([]byte, len(dsetRecordMagic)+2)
	//nolint:gosec // G115: store offsets fit in int64
	if _, err := s.f.ReadAt(fixed, int64(off)); err != nil {
		return rec, 0, fmt.Errorf("record header at %d: %w", off, err)
	}
	if string(fixed[:len(dsetRecordMagic)]) != dsetRecordMagic {
		return rec, 0, fmt.Errorf("bad record signature at %d", off)
	}
	nameLen := uint64(wire.Uint16(fixed[len(dsetRecordMagic):]))
	off += uint64(len(fixed))

	rest := make([]byte, nameLen+2)
	//nolint:gosec // G115: store offsets fit in int64
	if _, err := s.f.ReadAt(rest, int64(off)); err != nil {
		return rec, 0, fmt.Errorf("record name at %d: %w", off, err)
	}
	rec.name = string(rest[:nameLen])
	rec.elem = ElementType(rest[nameLen])
	rank := uint64(rest[nameLen+1])
	off += nameLen + 2

	tail := make([]byte, 8*rank+8)
	//nolint:gosec // G115: store offsets fit in int64
	if _, err := s.f.ReadAt(tail, int64(off)); err != nil {
		return rec, 0, fmt.Errorf("record dims at %d: %w", off, err)
	}
	rec.dims = make([]uint64, rank)
	for d := uint64(0); d < rank; d++ {
		rec.dims[d] = wire.Uint64(tail[8*d:])
	}
	rec.payloadBytes = wire.Uint64(tail[8*rank:])
	rec.payloadOff = off + uint64(len(tail))

	next := rec.payloadOff + rec.payloadBytes
	if next > fileSize {
		return rec, 0, fmt.Errorf("record %q payload reaches %d beyond file size %d", rec.name, next, fileSize)
	}
	return rec, next, nil
}

// fileDataset is a FileStore dataset handle.
type fileDataset struct {
	store  *FileStore
	rec    dsetRecord
	closed bool
}

// Name returns the dataset name.
func (d *fileDataset) Name() string { return d.rec.name }

// Dims returns the dataset extent.
func (d *fileDataset) Dims() []uint64 { return d.rec.dims }

// ElementType returns the element type.
func (d *fileDataset) ElementType() ElementType { return d.rec.elem }

// Close releases the handle. Local; safe to call multiple times.
func (d *fileDataset) Close() error {
	d.closed = true
	return nil
}

// Write transfers buffer elements into the dataset following the positional
// store/memory correspondence. Independent: no group synchronization.
func (d *fileDataset) Write(storeSel Selection, memSel Selection, memDims []uint64, buf []byte) error {
	if err := d.checkTransfer("write", memSel, memDims, buf); err != nil {
		return err
	}
	if d.store.readOnly {
		return ioErr("write", d.rec.name, errors.New("store is read-only"))
	}

	m, err := ResolveMapping(storeSel, d.rec.dims, memSel, memDims)
	if err != nil {
		return err
	}

	es := d.rec.elem.Size()
	err = m.ForEachOffset(func(pos, storeOff, memOff uint64) error {
		src := buf[memOff*es : memOff*es+es]
		//nolint:gosec // G115: store offsets fit in int64
		_, werr := d.store.f.WriteAt(src, int64(d.rec.payloadOff+storeOff*es))
		return werr
	})
	return ioErr("write", d.rec.name, err)
}

// Read transfers dataset elements into the buffer at their corresponding
// memory offsets, leaving unselected positions untouched. Independent.
func (d *fileDataset) Read(storeSel Selection, memSel Selection, memDims []uint64, buf []byte) error {
	if err := d.checkTransfer("read", memSel, memDims, buf); err != nil {
		return err
	}

	m, err := ResolveMapping(storeSel, d.rec.dims, memSel, memDims)
	if err != nil {
		return err
	}

	es := d.rec.elem.Size()
	err = m.ForEachOffset(func(pos, storeOff, memOff uint64) error {
		dst := buf[memOff*es : memOff*es+es]
		//nolint:gosec // G115: store offsets fit in int64
		_, rerr := d.store.f.ReadAt(dst, int64(d.rec.payloadOff+storeOff*es))
		return rerr
	})
	return ioErr("read", d.rec.name, err)
}

// checkTransfer validates handle state and buffer capacity against the
// memory space extent.
func (d *fileDataset) checkTransfer(op string, memSel Selection, memDims []uint64, buf []byte) error {
	if d.closed || d.store.f == nil {
		return ioErr(op, d.rec.name, errors.New("dataset handle is closed"))
	}
	memPoints, err := utils.Product(memDims)
	if err != nil {
		return ioErr(op, d.rec.name, err)
	}
	need, err := utils.SafeMultiply(memPoints, d.rec.elem.Size())
	if err != nil {
		return ioErr(op, d.rec.name, err)
	}
	if uint64(len(buf)) < need {
		return ioErr(op, d.rec.name,
			fmt.Errorf("buffer holds %d bytes, memory space needs %d", len(buf), need))
	}
	return nil
}

var _ io.Closer = (*FileStore)(nil)
