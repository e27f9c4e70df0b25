package queue

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializer for persisted jobs. Field order is part of the
// storage format; append new fields at the end and never reorder.

// JobMUS is the serializer instance for Job.
var JobMUS = jobSer{}

type jobSer struct{}

func (jobSer) Marshal(v *Job, buf []byte) (n int) {
	n = ord.String.Marshal(v.ID, buf)
	n += ord.String.Marshal(v.Queue, buf[n:])
	n += marshalBytes(v.Payload, buf[n:])
	n += varint.Int.Marshal(v.Attempts, buf[n:])
	n += varint.Int.Marshal(v.MaxAttempts, buf[n:])
	n += varint.Int.Marshal(int(v.State), buf[n:])
	n += marshalTime(v.EnqueuedAt, buf[n:])
	n += marshalTime(v.ReadyAt, buf[n:])
	n += marshalTime(v.LeaseUntil, buf[n:])
	n += ord.String.Marshal(v.LastError, buf[n:])
	return n
}

func (jobSer) Unmarshal(buf []byte) (v *Job, n int, err error) {
	v = &Job{}
	var n1 int

	v.ID, n, err = ord.String.Unmarshal(buf)
	if err != nil {
		return nil, n, err
	}
	v.Queue, n1, err = ord.String.Unmarshal(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.Payload, n1, err = unmarshalBytes(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.Attempts, n1, err = varint.Int.Unmarshal(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.MaxAttempts, n1, err = varint.Int.Unmarshal(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	var state int
	state, n1, err = varint.Int.Unmarshal(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.State = State(state)
	v.EnqueuedAt, n1, err = unmarshalTime(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.ReadyAt, n1, err = unmarshalTime(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.LeaseUntil, n1, err = unmarshalTime(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v.LastError, n1, err = ord.String.Unmarshal(buf[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return v, n, nil
}

func (jobSer) Size(v *Job) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Queue)
	size += sizeBytes(v.Payload)
	size += varint.Int.Size(v.Attempts)
	size += varint.Int.Size(v.MaxAttempts)
	size += varint.Int.Size(int(v.State))
	size += sizeTime(v.EnqueuedAt)
	size += sizeTime(v.ReadyAt)
	size += sizeTime(v.LeaseUntil)
	size += ord.String.Size(v.LastError)
	return size
}

func marshalBytes(v []byte, buf []byte) (n int) {
	n = varint.Int.Marshal(len(v), buf)
	n += copy(buf[n:], v)
	return n
}

func unmarshalBytes(buf []byte) (v []byte, n int, err error) {
	length, n, err := varint.Int.Unmarshal(buf)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make([]byte, length)
	n += copy(v, buf[n:])
	return v, n, nil
}

func sizeBytes(v []byte) int {
	return varint.Int.Size(len(v)) + len(v)
}

func marshalTime(v time.Time, buf []byte) int {
	return varint.Int64.Marshal(v.UnixMicro(), buf)
}

func unmarshalTime(buf []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(buf)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(v time.Time) int {
	return varint.Int64.Size(v.UnixMicro())
}
