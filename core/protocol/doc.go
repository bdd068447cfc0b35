// Package protocol defines the packets exchanged between relay clients and
// the server and their line-delimited JSON framing.
//
// Each packet is one JSON object with a single key naming the variant,
// terminated by a newline:
//
//	{"Join":{"group":"cats"}}
//	{"Send":{"group":"cats","message":"hello"}}
//	{"Message":{"group":"cats","message":"hello"}}
//	{"Error":"Can't send message 'x' to the group 'dogs' because the group does not exist"}
//
// A line that is not valid JSON, names an unknown variant, or lacks payload
// fields decodes to an error wrapping ErrDecode. The relay treats such an
// error as fatal for the connection.
package protocol
