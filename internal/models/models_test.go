package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestMessage_Fields(t *testing.T) {
	typ := reflect.TypeOf(Message{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "FromAgent", "not null")
	assertGormTag(t, typ, "Body", "type:text")

	f, _ := typ.FieldByName("ParentID")
	if f.Type != reflect.TypeOf((*uint)(nil)) {
		t.Errorf("ParentID type = %s, want *uint", f.Type)
	}
}

func TestMessageRecipient_CompositeIndex(t *testing.T) {
	typ := reflect.TypeOf(MessageRecipient{})
	assertGormTag(t, typ, "MessageID", "idx_msg_recipient")
	assertGormTag(t, typ, "AgentID", "idx_msg_recipient")
}

func TestDeliveryRecord_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(DeliveryRecord{})
	assertGormTag(t, typ, "MessageID", "primaryKey")
	assertGormTag(t, typ, "AgentID", "primaryKey")
	assertGormTag(t, typ, "State", "default:received")
}

func TestDeliveryRecord_Terminal(t *testing.T) {
	cases := []struct {
		state string
		want  bool
	}{
		{DeliveryReceived, false},
		{DeliveryRouted, false},
		{DeliveryResponded, true},
		{DeliveryFailed, true},
	}
	for _, c := range cases {
		rec := DeliveryRecord{State: c.state, ReceivedAt: time.Now()}
		if got := rec.Terminal(); got != c.want {
			t.Errorf("Terminal(%s) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestJob_Fields(t *testing.T) {
	typ := reflect.TypeOf(Job{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "OwnerAgent", "not null")
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "Priority", "default:5")
	assertGormTag(t, typ, "NotifyList", "type:json")
}

func TestJobTerminal(t *testing.T) {
	for _, s := range []string{JobCompleted, JobFailed, JobCancelled} {
		if !JobTerminal(s) {
			t.Errorf("JobTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []string{JobPending, JobInProgress} {
		if JobTerminal(s) {
			t.Errorf("JobTerminal(%s) = true, want false", s)
		}
	}
}

func TestAgentConfig_UniqueName(t *testing.T) {
	typ := reflect.TypeOf(AgentConfig{})
	assertGormTag(t, typ, "Name", "uniqueIndex")
	assertGormTag(t, typ, "Model", "not null")
}

func TestSystemDefault_Fields(t *testing.T) {
	typ := reflect.TypeOf(SystemDefault{})
	assertGormTag(t, typ, "Key", "primaryKey")
	assertGormTag(t, typ, "ValueType", "default:string")
}
