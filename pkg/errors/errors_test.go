package errors

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"
)

func TestBridgeErrorString(t *testing.T) {
	err := &BridgeError{
		Op:   "test.operation",
		Kind: KindExecution,
		Err:  &MarshalError{Context: "resolve", Detail: "too many values"},
	}
	got := err.Error()
	if got == "" {
		t.Error("expected non-empty error string")
	}
}

func TestBridgeErrorWithModule(t *testing.T) {
	err := &BridgeError{
		Op:     "bridge.callSync",
		Kind:   KindLinkage,
		Module: "DeviceInfo",
		Method: "getConstants",
		Err:    stderrors.New("no peer"),
	}
	got := err.Error()
	want := "module=DeviceInfo method=getConstants"
	if !strings.Contains(got, want) {
		t.Errorf("error string %q should contain %q", got, want)
	}
}

func TestBridgeErrorWithTag(t *testing.T) {
	err := &BridgeError{
		Op:   "mounting.insert",
		Kind: KindMutation,
		Tag:  42,
		Err:  stderrors.New("unknown tag"),
	}
	if got := err.Error(); !strings.Contains(got, "tag=42") {
		t.Errorf("error string %q should contain tag", got)
	}
}

func TestBridgeErrorUnwrap(t *testing.T) {
	inner := stderrors.New("inner")
	err := &BridgeError{Op: "x", Err: inner}
	if !stderrors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindLinkage, "linkage"},
		{KindMarshal, "marshal"},
		{KindExecution, "execution"},
		{KindAsyncExecution, "async_execution"},
		{KindDangling, "dangling"},
		{KindMutation, "mutation"},
		{KindPlatform, "platform"},
		{KindInit, "init"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	got := err.Error()
	want := "panic: test panic"
	if got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestPanicErrorStringWithOp(t *testing.T) {
	err := &PanicError{
		Op:        "executor.main",
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	got := err.Error()
	want := "panic in executor.main: test panic"
	if got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestMarshalErrorString(t *testing.T) {
	err := &MarshalError{Context: "reject", Detail: "unsupported shape", Got: 12}
	want := "reject: unsupported shape (got int)"
	if got := err.Error(); got != want {
		t.Errorf("MarshalError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	rec := InstallRecorder(t.Cleanup)

	Report(&BridgeError{
		Op:   "test.op",
		Kind: KindInit,
		Err:  stderrors.New("boom"),
	})

	errs := rec.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 captured error, got %d", len(errs))
	}
	if errs[0].Op != "test.op" {
		t.Errorf("Op = %q, want %q", errs[0].Op, "test.op")
	}
	if errs[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportPanic(t *testing.T) {
	rec := InstallRecorder(t.Cleanup)

	ReportPanic(&PanicError{
		Value:     "test panic value",
		Timestamp: time.Now(),
	})

	panics := rec.Panics()
	if len(panics) != 1 {
		t.Fatalf("expected 1 panic, got %d", len(panics))
	}
	if panics[0].Value != "test panic value" {
		t.Errorf("Value = %v, want %q", panics[0].Value, "test panic value")
	}
}

func TestRecover(t *testing.T) {
	rec := InstallRecorder(t.Cleanup)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	panics := rec.Panics()
	if len(panics) != 1 {
		t.Fatal("expected panic to be recovered and captured")
	}
	if panics[0].Op != "test.recover" {
		t.Errorf("Op = %q, want %q", panics[0].Op, "test.recover")
	}
}

func TestRecoverWithCallback(t *testing.T) {
	InstallRecorder(t.Cleanup)

	var got any
	func() {
		defer RecoverWithCallback("test.cb", func(r any) { got = r })
		panic("cb")
	}()
	if got != "cb" {
		t.Errorf("callback got %v, want %q", got, "cb")
	}
}

func TestAbortWithHook(t *testing.T) {
	rec := InstallRecorder(t.Cleanup)

	var hooked *BridgeError
	SetAbortHook(func(err *BridgeError) { hooked = err })
	t.Cleanup(func() { SetAbortHook(nil) })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Abort should not return when a hook is installed")
			}
		}()
		Abort(&BridgeError{Op: "bridge.callSync", Kind: KindLinkage, Module: "Missing", Err: stderrors.New("unlinked")})
	}()

	if hooked == nil || hooked.Module != "Missing" {
		t.Fatalf("abort hook not invoked with the error: %+v", hooked)
	}
	if hooked.StackTrace == "" {
		t.Error("expected stack trace on fatal error")
	}
	if len(rec.ErrorsOfKind(KindLinkage)) != 1 {
		t.Error("fatal error should also be reported")
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Error("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(nil)
	if DefaultHandler == nil {
		t.Error("SetHandler(nil) should set default LogHandler, not nil")
	}
	if _, ok := DefaultHandler.(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", DefaultHandler)
	}
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	if Logger() == nil {
		t.Error("SetLogger(nil) should install a no-op logger")
	}
}
