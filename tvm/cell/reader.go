package cell

type cellBytesReader struct {
	data []byte
}

func newReader(data []byte) *cellBytesReader {
	return &cellBytesReader{
		data: data,
	}
}

func (r *cellBytesReader) ReadBytes(num int) ([]byte, error) {
	if num < 0 || len(r.data) < num {
		return nil, ErrNotEnoughData(len(r.data), num)
	}

	ret := r.data[:num]
	r.data = r.data[num:]
	return ret, nil
}

func (r *cellBytesReader) ReadByte() (byte, error) {
	if len(r.data) < 1 {
		return 0, ErrNotEnoughData(len(r.data), 1)
	}

	ret := r.data[0]
	r.data = r.data[1:]
	return ret, nil
}

// ReadDynInt reads a big endian integer of sz bytes.
func (r *cellBytesReader) ReadDynInt(sz int) (uint64, error) {
	data, err := r.ReadBytes(sz)
	if err != nil {
		return 0, err
	}

	var val uint64
	for _, b := range data {
		val = val<<8 | uint64(b)
	}
	return val, nil
}

func (r *cellBytesReader) LeftLen() int {
	return len(r.data)
}
