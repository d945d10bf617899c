package common

import "testing"

func TestMessageTypeValues(t *testing.T) {
	// the numeric values are part of the protocol
	tests := map[MessageType]uint32{
		MsgTNewDevice:        1,
		MsgTDeviceHandle:     2,
		MsgTSetParam:         5,
		MsgTMapArray:         11,
		MsgTRenderFrame:      15,
		MsgTFrameIsReady:     19,
		MsgTGetProperty:      20,
		MsgTParameterInfo:    27,
		MsgTGetParameterInfo: 26,
	}
	for typ, want := range tests {
		if uint32(typ) != want {
			t.Errorf("%s = %d, want %d", typ, uint32(typ), want)
		}
	}
}

func TestMessageTypeString(t *testing.T) {
	for typ := MsgTUnknown; typ < msgTCount; typ++ {
		if typ.String() == "" {
			t.Errorf("message type %d has no name", uint32(typ))
		}
	}
	if got := MessageType(999).String(); got != "MessageType(999)" {
		t.Errorf("unexpected name for unknown type: %s", got)
	}
}

func TestMessageTypeClassification(t *testing.T) {
	if !MsgTChannelColor.IsReply() || MsgTRenderFrame.IsReply() {
		t.Errorf("reply classification wrong")
	}
	if MsgTUnknown.Valid() || msgTCount.Valid() || !MsgTRetain.Valid() {
		t.Errorf("validity classification wrong")
	}
}
