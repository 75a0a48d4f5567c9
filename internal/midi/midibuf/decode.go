package midibuf

import "github.com/leandrodaf/notebridge/sdk/contracts"

// MessageLen returns the full length in bytes of a channel message starting with status,
// or 0 when status is not a channel status byte.
func MessageLen(status byte) int {
	if status < 0x80 || status >= 0xF0 {
		return 0
	}
	return 1 + dataLen(status)
}

// dataLen returns the number of data bytes following a channel status byte.
func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// PushBytes decodes the channel messages in a raw MIDI packet, honouring running status, and
// pushes each one stamped with deviceID and timestamp. System messages are skipped and
// real-time bytes are ignored wherever they appear. A message cut short by a new status byte
// is discarded. It returns the number of events buffered.
func (b *Buffer) PushBytes(deviceID int, data []byte, timestamp uint32) int {
	var (
		status byte
		pushed int
		buf    [2]byte
		have   int
	)
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c >= 0xF8:
			// Real-time bytes may interleave with any message.
			continue
		case c == 0xF0:
			for i < len(data) && data[i] != 0xF7 {
				i++
			}
			status, have = 0, 0
			continue
		case c >= 0xF0:
			status, have = 0, 0
			continue
		case c&0x80 != 0:
			status, have = c, 0
			continue
		}
		if status == 0 {
			continue
		}
		buf[have] = c
		have++
		if have < dataLen(status) {
			continue
		}
		ev := contracts.RawEvent{DeviceID: deviceID, Status: status, Data1: buf[0], Timestamp: timestamp}
		if have == 2 {
			ev.Data2 = buf[1]
		}
		have = 0
		if b.Push(ev) {
			pushed++
		}
	}
	return pushed
}
