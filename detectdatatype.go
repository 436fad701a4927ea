package exprqc

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZlib
	DataTypeBZip2
)

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZlib:  {0x78, 0x9c},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType peeks at the head of a buffered stream and reports which
// compression, if any, it carries. The stream is not advanced. Byte code
// signatures from https://stackoverflow.com/a/19127748/199475
func DetectDataType(br *bufio.Reader) (DataType, error) {
	buff, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return DataTypeInvalid, err
	}

	// Match known signatures
Outer:
	for dt, sig := range byteCodeSigs {
		if len(buff) < len(sig) {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReader wraps r in whichever decompressor its leading bytes
// call for. Annotation tables, catalogues and engine outputs all arrive either
// raw or compressed, so everything that reads them goes through here.
func MaybeDecompressReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	dt, err := DetectDataType(br)
	if err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip:
		return gzip.NewReader(br)
	case DataTypeZip:
		return &readCloserFaker{zipstream.NewReader(br)}, nil
	case DataTypeBZip2:
		return &readCloserFaker{bzip2.NewReader(br)}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, err
		}
		return &readCloserFaker{reader}, nil
	case DataTypeZlib:
		return zlib.NewReader(br)
	}

	// No data type detected. For now, we assume this is uncompressed.
	return &readCloserFaker{br}, nil
}

// readCloserFaker "upgrades" readers that don't need to be closed
type readCloserFaker struct {
	io.Reader
}

func (c *readCloserFaker) Close() error {
	return nil
}
