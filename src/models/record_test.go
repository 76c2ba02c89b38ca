package models

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecord_WireShape(t *testing.T) {
	data, err := EncodeRecord(SetRecord("a", "1"))
	assert.Nil(t, err)
	assert.Equal(t, `{"Set":{"key":"a","value":"1"}}`, string(data))

	data, err = EncodeRecord(RemoveRecord("a"))
	assert.Nil(t, err)
	assert.Equal(t, `{"Remove":{"key":"a"}}`, string(data))

	_, err = EncodeRecord(Record{Key: "a"})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestEncodeDecodeRecord(t *testing.T) {
	testRoundTrip := func(t *testing.T, rec Record) {
		data, err := EncodeRecord(rec)
		require.Nil(t, err)

		got, err := DecodeRecord(data)
		assert.Nil(t, err)
		assert.Equal(t, rec, got)
	}

	t.Run("set record", func(t *testing.T) {
		testRoundTrip(t, SetRecord("name", "logkv"))
	})

	t.Run("set record with empty value", func(t *testing.T) {
		testRoundTrip(t, SetRecord("name", ""))
	})

	t.Run("remove record", func(t *testing.T) {
		testRoundTrip(t, RemoveRecord("name"))
	})

	t.Run("escaped and unicode content", func(t *testing.T) {
		testRoundTrip(t, SetRecord("k\"ey\n", "välue <&>  "))
	})
}

func TestDecodeRecord_Errors(t *testing.T) {
	corrupt := []string{
		`{}`,
		`null`,
		`[]`,
		`"Set"`,
		`{"Get":{"key":"a"}}`,
		`{"Set":{"key":"a","value":"1"},"Remove":{"key":"a"}}`,
		`{"Set":{"key":"a","value":"1","extra":true}}`,
		`{"Set":{"key":"a","value":"1"}}{"Remove":{"key":"a"}}`,
		`not json`,
	}
	for _, in := range corrupt {
		_, err := DecodeRecord([]byte(in))
		assert.ErrorIs(t, err, ErrCorruptRecord, in)
	}

	truncated := []string{
		``,
		`{"Set":{"key":"a","value":"1"}`,
		`{"Remove":{"ke`,
	}
	for _, in := range truncated {
		_, err := DecodeRecord([]byte(in))
		assert.ErrorIs(t, err, ErrTruncatedRecord, in)
	}
}

func TestDecodeRecord_TrailingWhitespace(t *testing.T) {
	got, err := DecodeRecord([]byte("{\"Remove\":{\"key\":\"a\"}}\n"))
	assert.Nil(t, err)
	assert.Equal(t, RemoveRecord("a"), got)
}

func TestRecordDecoder_Offsets(t *testing.T) {
	records := []Record{
		SetRecord("a", "1"),
		SetRecord("bb", "22"),
		RemoveRecord("a"),
		SetRecord("ccc", "333"),
	}

	var buf bytes.Buffer
	var lengths []int64
	for _, rec := range records {
		data, err := EncodeRecord(rec)
		require.Nil(t, err)
		buf.Write(data)
		lengths = append(lengths, int64(len(data)))
	}
	raw := buf.Bytes()

	dec := NewRecordDecoder(bytes.NewReader(raw))
	var offset int64
	for i, want := range records {
		rec, off, length, err := dec.Next()
		require.Nil(t, err)
		assert.Equal(t, want, rec)
		assert.Equal(t, offset, off)
		assert.Equal(t, lengths[i], length)

		// the byte range alone must decode back to the same record
		again, err := DecodeRecord(raw[off : off+length])
		assert.Nil(t, err)
		assert.Equal(t, want, again)

		offset += length
	}

	_, _, _, err := dec.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(len(raw)), dec.Offset())
}

func TestRecordDecoder_TruncatedTail(t *testing.T) {
	whole, err := EncodeRecord(SetRecord("a", "1"))
	require.Nil(t, err)
	partial, err := EncodeRecord(SetRecord("b", "2"))
	require.Nil(t, err)

	raw := append(append([]byte{}, whole...), partial[:len(partial)/2]...)
	dec := NewRecordDecoder(bytes.NewReader(raw))

	rec, _, _, err := dec.Next()
	assert.Nil(t, err)
	assert.Equal(t, "a", rec.Key)

	_, _, _, err = dec.Next()
	assert.ErrorIs(t, err, ErrTruncatedRecord)
	assert.Equal(t, int64(len(whole)), dec.Offset())
}

func TestRecordDecoder_Corrupt(t *testing.T) {
	dec := NewRecordDecoder(bytes.NewReader([]byte(`{"Set":{"key":"a","value":"1"}}{"Nope":{}}`)))

	_, _, _, err := dec.Next()
	assert.Nil(t, err)

	_, _, _, err = dec.Next()
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestRecordDecoder_Empty(t *testing.T) {
	dec := NewRecordDecoder(bytes.NewReader(nil))
	_, _, _, err := dec.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int64(0), dec.Offset())
}

func TestRecordOp_String(t *testing.T) {
	assert.Equal(t, "Set", OpSet.String())
	assert.Equal(t, "Remove", OpRemove.String())
	assert.Equal(t, "RecordOp(9)", RecordOp(9).String())
}
