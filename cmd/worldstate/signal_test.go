package main

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestWaitForShutdown(t *testing.T) {
	tests := []struct {
		name string
		sig  os.Signal
	}{
		{"sigint", syscall.SIGINT},
		{"sigterm", syscall.SIGTERM},
		{"interrupt", os.Interrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			go func() {
				WaitForShutdown()
				close(done)
			}()

			time.Sleep(50 * time.Millisecond)

			proc, err := os.FindProcess(os.Getpid())
			if err != nil {
				t.Fatalf("Failed to find current process: %v", err)
			}
			if err := proc.Signal(tt.sig); err != nil {
				t.Fatalf("Failed to send %v: %v", tt.sig, err)
			}

			select {
			case <-done:
			case <-time.After(1 * time.Second):
				t.Fatalf("WaitForShutdown did not return after %v", tt.sig)
			}
		})
	}
}

func TestWaitForShutdown_DoesNotReturnWithoutSignal(t *testing.T) {
	done := make(chan struct{})
	go func() {
		WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForShutdown returned without receiving a signal")
	case <-time.After(200 * time.Millisecond):
		proc, _ := os.FindProcess(os.Getpid())
		_ = proc.Signal(syscall.SIGINT)
		<-done
	}
}
