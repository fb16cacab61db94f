package domain

import "testing"

func TestMessage_UpdateCounts(t *testing.T) {
	m := Message{
		Questions: []Question{{Name: "alpha.local.", Type: RRTypeA, Class: RRClassIN}},
		Answers: []Resource{
			{Name: "alpha.local.", Type: RRTypeA, Class: RRClassIN, Payload: AddressPayload{}},
			{Name: "alpha.local.", Type: RRTypeA, Class: RRClassIN, Payload: AddressPayload{}},
		},
	}
	m.UpdateCounts()
	if m.Header.QDCount != 1 {
		t.Errorf("QDCount = %d, want 1", m.Header.QDCount)
	}
	if m.Header.ANCount != 2 {
		t.Errorf("ANCount = %d, want 2", m.Header.ANCount)
	}
	if m.Header.NSCount != 0 || m.Header.ARCount != 0 {
		t.Errorf("expected zero authority/additional counts, got %d/%d", m.Header.NSCount, m.Header.ARCount)
	}
}

func TestMessage_IsEmpty(t *testing.T) {
	var m Message
	if !m.IsEmpty() {
		t.Errorf("zero-value message should be empty")
	}
	m.Additionals = append(m.Additionals, Resource{})
	if m.IsEmpty() {
		t.Errorf("message with an additional should not be empty")
	}
}

func TestMessage_SectionSlice(t *testing.T) {
	m := &Message{}
	*m.SectionSlice(SectionAnswer) = append(*m.SectionSlice(SectionAnswer), Resource{Name: "x"})
	if len(m.Answers) != 1 {
		t.Errorf("expected answer appended via SectionSlice, got %d", len(m.Answers))
	}
	if m.SectionSlice(SectionExpired) != nil {
		t.Errorf("SectionExpired should have no backing slice")
	}
}
