/*
Package ethercap captures Ethernet frames from a BSD packet-filter device.

MacOS and FreeBSD expose capture through /dev/bpf* devices rather than a raw
socket. A single read(2) on such a device returns a batch of records, each a
bpf_hdr followed by the captured bytes and padded to the platform word
alignment. Some good references:
  https://github.com/c-bata/xpcap/blob/master/sniffer.c#L50
  https://gist.github.com/2opremio/6fda363ab384b0d85347956fb79a3927
  bpf(4)

The pieces, leaves first:

	Handle   owns the device and performs one blocking read per ReadBatch
	Records  walks a batch and yields one Record per bpf_hdr
	Loop     drives Handle -> Records -> ethernet.Decode -> callbacks

Cancellation is observed between batches only. A read that is already blocked
completes before the loop notices, so shutdown latency is bounded by the next
frame arriving on the interface.
*/
package ethercap
