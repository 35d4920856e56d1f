package process

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procReadProcessMemory  = kernel32.NewProc("ReadProcessMemory")
	procWriteProcessMemory = kernel32.NewProc("WriteProcessMemory")
)

// ReadError reports a failed memory read. Denied is set when the failure is an
// access-denied condition, which usually means the tool needs elevation rather
// than a retry.
type ReadError struct {
	Addr   uintptr
	Len    int
	Denied bool
	Err    error
}

func (e *ReadError) Error() string {
	if e.Denied {
		return fmt.Sprintf("read %d bytes at 0x%X: access denied", e.Len, e.Addr)
	}
	return fmt.Sprintf("read %d bytes at 0x%X: %v", e.Len, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is the write-side counterpart of ReadError.
type WriteError struct {
	Addr   uintptr
	Len    int
	Denied bool
	Err    error
}

func (e *WriteError) Error() string {
	if e.Denied {
		return fmt.Sprintf("write %d bytes at 0x%X: access denied", e.Len, e.Addr)
	}
	return fmt.Sprintf("write %d bytes at 0x%X: %v", e.Len, e.Addr, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Manager holds the open process handle and the cached module base. It is the
// only owner of the handle; everyone else reads through it.
type Manager struct {
	mu         sync.Mutex
	handle     windows.Handle
	pid        uint32
	moduleName string
	moduleBase uintptr
	attached   bool
}

func NewManager() *Manager { return &Manager{} }

// Attach locates the named process, opens a read/write handle and caches the
// base address of the named module. A previous handle, if any, is released
// first so the manager can be reused across game restarts.
func (m *Manager) Attach(processName, moduleName string) error {
	pid, err := FindProcess(processName)
	if err != nil {
		return err
	}

	handle, err := windows.OpenProcess(
		windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ|windows.PROCESS_VM_WRITE|windows.PROCESS_VM_OPERATION,
		false, pid)
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return fmt.Errorf("open process %d: access denied, run elevated: %w", pid, err)
		}
		return fmt.Errorf("open process %d: %w", pid, err)
	}

	base, err := GetModuleBase(pid, moduleName)
	if err != nil {
		windows.CloseHandle(handle)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached {
		windows.CloseHandle(m.handle)
	}
	m.handle = handle
	m.pid = pid
	m.moduleName = moduleName
	m.moduleBase = base
	m.attached = true
	return nil
}

// PID returns the attached process id.
func (m *Manager) PID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid
}

// ModuleBase returns the cached base address of the tracked module.
func (m *Manager) ModuleBase() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moduleBase
}

// IsAlive cheaply checks that the process behind the pinned handle is still
// running. A restarted game shows up as not-alive here even if the new
// process reuses the PID, because the handle stays bound to the old one.
func (m *Manager) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return false
	}

	var code uint32
	if err := windows.GetExitCodeProcess(m.handle, &code); err != nil {
		return false
	}
	const stillActive = 259
	if code != stillActive {
		return false
	}
	return true
}

// RefreshModuleBase re-resolves the module base. The engine calls it when
// snapshot builds fail persistently, in case the module was remapped.
func (m *Manager) RefreshModuleBase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	base, err := GetModuleBase(m.pid, m.moduleName)
	if err != nil {
		return err
	}
	m.moduleBase = base
	return nil
}

// ReadBytes fills buf from the target's address space.
func (m *Manager) ReadBytes(addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var bytesRead uintptr
	ret, _, callErr := procReadProcessMemory.Call(
		uintptr(m.handle),
		addr,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&bytesRead)),
	)
	if ret == 0 {
		return &ReadError{
			Addr:   addr,
			Len:    len(buf),
			Denied: errors.Is(callErr, windows.ERROR_ACCESS_DENIED),
			Err:    callErr,
		}
	}
	if int(bytesRead) != len(buf) {
		return &ReadError{Addr: addr, Len: len(buf), Err: fmt.Errorf("short read: %d of %d", bytesRead, len(buf))}
	}
	return nil
}

// WriteBytes copies buf into the target's address space.
func (m *Manager) WriteBytes(addr uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var bytesWritten uintptr
	ret, _, callErr := procWriteProcessMemory.Call(
		uintptr(m.handle),
		addr,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&bytesWritten)),
	)
	if ret == 0 {
		return &WriteError{
			Addr:   addr,
			Len:    len(buf),
			Denied: errors.Is(callErr, windows.ERROR_ACCESS_DENIED),
			Err:    callErr,
		}
	}
	if int(bytesWritten) != len(buf) {
		return &WriteError{Addr: addr, Len: len(buf), Err: fmt.Errorf("short write: %d of %d", bytesWritten, len(buf))}
	}
	return nil
}

// Close releases the process handle. The manager is unusable afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached {
		windows.CloseHandle(m.handle)
		m.attached = false
	}
}
