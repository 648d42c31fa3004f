package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/saltytrain2/genradio/internal/testutil/testlog"
)

func TestAddMessageRoundTrip(t *testing.T) {
	testlog.Start(t)
	msg := AddMessage("k1234567890abcdefghi", 10.5, -20.25)
	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != msg {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", got, msg)
	}
}

func TestClearMessageOmitsFields(t *testing.T) {
	testlog.Start(t)
	data, err := Marshal(ClearMessage())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Action != ActionClear || got.Key != "" {
		t.Fatalf("unexpected clear message: %+v", got)
	}
}

func TestValidateFailures(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		msg  Message
		want error
	}{
		{Message{Action: ActionAdd}, ErrInvalidMessage},
		{Message{Action: ActionRemove}, ErrInvalidMessage},
		{Message{Action: "drop"}, ErrUnknownAction},
		{Message{}, ErrUnknownAction},
	}
	for _, tc := range cases {
		if err := tc.msg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("msg=%+v err=%v want=%v", tc.msg, err, tc.want)
		}
	}
}

func TestMarshalRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	if _, err := Marshal(Message{Action: "bogus"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestDecoderReadsMessagesInSequence(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	first, err := Marshal(AddMessage("aaaaaaaaaaaaaaaaaaaa", 1, 2))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Marshal(RemoveMessage("aaaaaaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	buf.Write(first)
	buf.Write(second)

	dec := NewDecoder(&buf)
	got, err := dec.Decode()
	if err != nil || got.Action != ActionAdd {
		t.Fatalf("first decode: msg=%+v err=%v", got, err)
	}
	got, err = dec.Decode()
	if err != nil || got.Action != ActionRemove {
		t.Fatalf("second decode: msg=%+v err=%v", got, err)
	}
}

func TestDecoderRejectsInvalidPayload(t *testing.T) {
	testlog.Start(t)
	data, err := Marshal(RemoveMessage("x"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Corrupt the action tag so decode-side validation must catch it.
	data = bytes.Replace(data, []byte("remove"), []byte("remxve"), 1)
	if _, err := NewDecoder(bytes.NewReader(data)).Decode(); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}
