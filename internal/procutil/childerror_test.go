package procutil

import (
	"bytes"
	"io"
	"testing"
)

func TestChildErrorRoundTrip(t *testing.T) {
	kinds := []SpawnErrorKind{
		KindSuccess, KindPrepareStdio, KindPreExecHook, KindExecFailure, KindDetachCloneFailure,
	}
	for _, kind := range kinds {
		var buf bytes.Buffer
		if err := writeChildError(&buf, kind, 42); err != nil {
			t.Fatalf("write: %v", err)
		}
		if buf.Len() != childErrorRecordSize {
			t.Fatalf("expected %d bytes, got %d", childErrorRecordSize, buf.Len())
		}
		rec, ok := readChildError(&buf)
		if !ok {
			t.Fatalf("expected ok read for kind %v", kind)
		}
		if SpawnErrorKind(rec.Kind) != kind || rec.Errno != 42 {
			t.Fatalf("round trip mismatch: got kind=%v errno=%d", SpawnErrorKind(rec.Kind), rec.Errno)
		}
	}
}

func TestReadChildErrorEmptyMeansSuccess(t *testing.T) {
	_, ok := readChildError(bytes.NewReader(nil))
	if ok {
		t.Fatalf("expected zero-length read to report success (ok=false)")
	}
}

func TestReadChildErrorShortReadMeansAssumeSuccess(t *testing.T) {
	_, ok := readChildError(io.LimitReader(bytes.NewReader([]byte{1, 2, 3}), 3))
	if ok {
		t.Fatalf("expected short read to be treated as success")
	}
}
