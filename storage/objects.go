package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/rillworks/dataswale/codec"
	"github.com/rillworks/dataswale/object"

	"golang.org/x/crypto/sha3"
)

// PutObject writes an encoded object to the given storage and returns its
// hash.
//
// The key for the object is the hash of the encoded bytes, so writing the
// same object twice is a no-op and stored objects are immutable.
func PutObject(ctx context.Context, s Storage, value any) (object.Hash, error) {
	hash := sha3.New256()
	buff := bytes.NewBuffer(nil)

	enc := codec.NewEncoder(io.MultiWriter(hash, buff))
	err := enc.Encode(value)
	if err != nil {
		return nil, err
	}
	err = enc.Flush()
	if err != nil {
		return nil, err
	}

	sum := object.Hash(hash.Sum(nil))
	err = s.Put(ctx, sum.String(), buff.Bytes())
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// GetRecord returns the record object with the given hash.
func GetRecord(ctx context.Context, s Storage, hash object.Hash) (object.Record, error) {
	data, err := s.Get(ctx, hash.String())
	if err != nil {
		return object.Record{}, err
	}
	return codec.NewDecoder(bytes.NewReader(data)).DecodeRecord()
}

// GetLayerRoot returns the layer root object with the given hash.
func GetLayerRoot(ctx context.Context, s Storage, hash object.Hash) (*object.LayerRoot, error) {
	data, err := s.Get(ctx, hash.String())
	if err != nil {
		return nil, err
	}
	return codec.NewDecoder(bytes.NewReader(data)).DecodeLayerRoot()
}

// GetVersion returns the version object with the given hash.
func GetVersion(ctx context.Context, s Storage, hash object.Hash) (*object.Version, error) {
	data, err := s.Get(ctx, hash.String())
	if err != nil {
		return nil, err
	}
	return codec.NewDecoder(bytes.NewReader(data)).DecodeVersion()
}
