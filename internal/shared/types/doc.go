// Package types provides the wire types shared by the client and the fake
// control panel.
//
// Envelope:
//   - Response[T], RawResponse, ErrorResponse: {success, data, errorCode}
//
// Stream payloads:
//   - StatusEvent, NotifyEvent, SysstatEvent
//
// Session:
//   - SessionData, SessionState, PasswordCredential, UpdatePassword
//
// Pending configuration:
//   - PendingConfig (sparse, pointer fields), ConfigAndValidity
//
// Worlds and server info:
//   - World, WorldGeneration, MCVersion, SystemInfo, WorldInfo, DelegatedURL
//
// Codes:
//   - ErrorCode, InfoCode, EventCode, PageCode
package types
