package mcu

import (
	"fmt"

	"github.com/gopper-project/stepcompress-host/protocol"
	"github.com/gopper-project/stepcompress-host/stepcompress"
)

// StepcompressTransport adapts a connected MCU to stepcompress.Transport and
// stepcompress.BatchSender, so a StepperCompressor (or Synchronizer) can send
// its compressed queue_step and set_next_step_dir commands over the same
// HostTransport used for every other MCU command.
type StepcompressTransport struct {
	mcu *MCU
}

// NewStepcompressTransport wraps an already-connected MCU.
func NewStepcompressTransport(m *MCU) *StepcompressTransport {
	return &StepcompressTransport{mcu: m}
}

// AllocAndEncode wraps a compressor-built wire-field slice into a Message.
// The slice layout mirrors what StepperCompressor.QueueMsg assembles: a
// 5-field slice is a queue_step ([msgtag, oid, interval, count, add]), a
// 3-field slice is a set_next_step_dir ([msgtag, oid, dir]). Only queue_step
// consumes an MCU move-queue slot.
func (t *StepcompressTransport) AllocAndEncode(data []uint32) *stepcompress.Message {
	return &stepcompress.Message{
		Data:         data,
		UsesMoveSlot: len(data) == 5,
	}
}

// SendBatch sends every message over the MCU's transport in order. A
// mid-batch failure leaves the remaining messages unsent; the caller should
// Reset its compressors before retrying, since their queues have already
// moved past the failed steps.
func (t *StepcompressTransport) SendBatch(msgs []*stepcompress.Message) error {
	for i, m := range msgs {
		if err := t.send(m); err != nil {
			return fmt.Errorf("stepcompress transport: message %d: %w", i, err)
		}
	}
	return nil
}

func (t *StepcompressTransport) send(m *stepcompress.Message) error {
	if !t.mcu.IsConnected() {
		return fmt.Errorf("mcu not connected")
	}
	if len(m.Data) == 0 {
		return fmt.Errorf("empty message")
	}

	msgtag := uint16(m.Data[0])
	switch len(m.Data) {
	case 5:
		oid, interval := m.Data[1], m.Data[2]
		count := uint16(m.Data[3])
		add := int16(int32(m.Data[4]))
		return t.mcu.transport.SendCommand(msgtag, func(out protocol.OutputBuffer) {
			protocol.EncodeQueueStep(out, oid, interval, count, add)
		})
	case 3:
		oid, dir := m.Data[1], uint8(m.Data[2])
		return t.mcu.transport.SendCommand(msgtag, func(out protocol.OutputBuffer) {
			protocol.EncodeSetNextStepDir(out, oid, dir)
		})
	default:
		return fmt.Errorf("unrecognized message shape (%d fields)", len(m.Data))
	}
}
