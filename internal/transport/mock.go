package transport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// MockSerial is an in-memory SerialPort backed by two byte queues: writes
// from the engine land in ToDevice, and bytes queued with Feed are what
// subsequent Reads return. It exists so internal/ols and internal/dslogic
// tests can drive a fake wire protocol without a real port.
type MockSerial struct {
	mu        sync.Mutex
	toDevice  bytes.Buffer
	fromHost  bytes.Buffer
	closed    bool
	readTimeo time.Duration
}

// NewMockSerial returns an empty mock port.
func NewMockSerial() *MockSerial {
	return &MockSerial{}
}

// Feed appends bytes the next Read calls will return, as if the device had
// sent them.
func (m *MockSerial) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fromHost.Write(p)
}

// Written returns (and clears) everything written to the mock so far, for
// assertions against the wire commands an engine sent.
func (m *MockSerial) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, m.toDevice.Len())
	copy(out, m.toDevice.Bytes())
	m.toDevice.Reset()
	return out
}

func (m *MockSerial) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("transport: mock serial closed")
	}
	if m.fromHost.Len() == 0 {
		return 0, nil
	}
	return m.fromHost.Read(p)
}

func (m *MockSerial) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("transport: mock serial closed")
	}
	return m.toDevice.Write(p)
}

func (m *MockSerial) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockSerial) SetReadTimeout(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeo = d
	return nil
}

// MockUSB is an in-memory USBDevice for internal/dslogic tests. Control
// transfers are recorded; bulk IN transfers drain a queue filled with
// Feed, bulk OUT transfers are recorded like control transfers.
type MockUSB struct {
	mu               sync.Mutex
	vendorID, productID uint16
	controlLog       []ControlCall
	bulkOut          bytes.Buffer
	bulkIn           bytes.Buffer
	claimed          map[int]bool
	closed           bool
}

// ControlCall records one ControlTransfer invocation for assertions.
type ControlCall struct {
	RequestType, Request uint8
	Value, Index         uint16
	Data                 []byte
}

// NewMockUSB returns a mock USB device reporting the given identifiers.
func NewMockUSB(vendorID, productID uint16) *MockUSB {
	return &MockUSB{
		vendorID:  vendorID,
		productID: productID,
		claimed:   make(map[int]bool),
	}
}

// FeedBulkIn appends bytes the next BulkTransfer on an IN endpoint returns.
func (m *MockUSB) FeedBulkIn(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkIn.Write(p)
}

// ControlCalls returns every ControlTransfer made so far.
func (m *MockUSB) ControlCalls() []ControlCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ControlCall, len(m.controlLog))
	copy(out, m.controlLog)
	return out
}

func (m *MockUSB) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeoutMs int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := ControlCall{RequestType: requestType, Request: request, Value: value, Index: index}
	if requestType&EndpointIn != 0 {
		n, _ := m.bulkIn.Read(data)
		call.Data = append([]byte(nil), data[:n]...)
		m.controlLog = append(m.controlLog, call)
		return n, nil
	}
	call.Data = append([]byte(nil), data...)
	m.controlLog = append(m.controlLog, call)
	return len(data), nil
}

func (m *MockUSB) BulkTransfer(endpoint uint8, data []byte, timeoutMs int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if endpoint&EndpointIn != 0 {
		return m.bulkIn.Read(data)
	}
	return m.bulkOut.Write(data)
}

func (m *MockUSB) ClaimInterface(iface int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed[iface] = true
	return nil
}

func (m *MockUSB) ReleaseInterface(iface int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, iface)
	return nil
}

func (m *MockUSB) VendorProduct() (uint16, uint16) { return m.vendorID, m.productID }

func (m *MockUSB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
