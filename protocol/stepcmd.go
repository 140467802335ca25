package protocol

// EncodeQueueStep VLQ-encodes a queue_step command's fields: oid, interval,
// count and add, matching Klipper's queue_step wire layout. The command ID
// itself is not encoded here; HostTransport.SendCommand writes it ahead of
// the args closure the same way it does for every other command (see
// mcu.sendIdentify). count is widened to a u32 and add to an i32 purely for
// VLQ encoding; the wire values themselves stay within their 16-bit domains.
func EncodeQueueStep(out OutputBuffer, oid uint32, interval uint32, count uint16, add int16) {
	EncodeVLQUint(out, oid)
	EncodeVLQUint(out, interval)
	EncodeVLQUint(out, uint32(count))
	EncodeVLQInt(out, int32(add))
}

// EncodeSetNextStepDir VLQ-encodes a set_next_step_dir command's fields.
func EncodeSetNextStepDir(out OutputBuffer, oid uint32, dir uint8) {
	EncodeVLQUint(out, oid)
	EncodeVLQUint(out, uint32(dir))
}
