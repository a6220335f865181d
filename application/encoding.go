// Defines methods/functions to encode/decode messages between client
// and server. Currently this module supports JSON marshal/unmarshal only.

package application

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/coniks-sys/treesync/protocol"
)

var errUnknownRequestType = errors.New("[application] Unknown request type")

// MarshalRequest returns a JSON encoding of the client's request.
func MarshalRequest(reqType int, request interface{}) ([]byte, error) {
	return json.Marshal(&protocol.Request{
		Type:    reqType,
		Request: request,
	})
}

// UnmarshalRequest parses a JSON-encoded request msg and
// creates the corresponding protocol.Request, which will be handled
// by the server. Unknown request types and unknown fields are refused.
func UnmarshalRequest(msg []byte) (*protocol.Request, error) {
	var content json.RawMessage
	req := protocol.Request{
		Request: &content,
	}
	if err := strictUnmarshal(msg, &req); err != nil {
		return nil, err
	}
	var request interface{}
	switch req.Type {
	case protocol.ReadSnapshotType:
		request = new(protocol.ReadSnapshotRequest)
	case protocol.GetRootType:
		request = new(protocol.GetRootRequest)
	case protocol.TxStatusType:
		request = new(protocol.TxStatusRequest)
	case protocol.TransitionsType:
		request = new(protocol.TransitionsRequest)
	case protocol.WriteSnapshotType:
		request = new(protocol.WriteSnapshotRequest)
	case protocol.InitTreeType:
		request = new(protocol.InitTreeRequest)
	case protocol.SubmitTxType:
		request = new(protocol.SubmitTxRequest)
	default:
		return nil, errUnknownRequestType
	}
	if len(content) > 0 && !bytes.Equal(content, []byte("null")) {
		if err := strictUnmarshal(content, request); err != nil {
			return nil, err
		}
	}
	req.Request = request
	return &req, nil
}

// MarshalResponse returns a JSON encoding of the server's response.
func MarshalResponse(response *protocol.Response) ([]byte, error) {
	return json.Marshal(response)
}

// UnmarshalResponse decodes the given message into a protocol.Response
// according to the given request type t. The request types are integer
// constants defined in the protocol package.
func UnmarshalResponse(t int, msg []byte) *protocol.Response {
	type Response struct {
		Error   protocol.ErrorCode
		Payload json.RawMessage
	}
	var res Response
	if err := json.Unmarshal(msg, &res); err != nil {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}

	// Payload is omitempty for error responses and for
	// the answer to a WriteSnapshotRequest
	if res.Payload == nil || bytes.Equal(res.Payload, []byte("null")) {
		response := protocol.NewErrorResponse(res.Error)
		if err := response.Validate(); err == protocol.ErrMalformedMessage {
			return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
		}
		return response
	}

	var payload protocol.ResponsePayload
	switch t {
	case protocol.ReadSnapshotType, protocol.InitTreeType:
		payload = new(protocol.SnapshotResponse)
	case protocol.GetRootType:
		payload = new(protocol.RootResponse)
	case protocol.SubmitTxType:
		payload = new(protocol.TxReceipt)
	case protocol.TxStatusType:
		payload = new(protocol.TxStatus)
	case protocol.TransitionsType:
		payload = new(protocol.TransitionsResponse)
	default:
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}
	if err := json.Unmarshal(res.Payload, payload); err != nil {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}
	response := &protocol.Response{
		Error:   res.Error,
		Payload: payload,
	}
	if err := response.Validate(); err != nil {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
	}
	return response
}

func malformedClientMsg(err error) *protocol.Response {
	// check if we're just propagating a message
	if err == nil {
		err = protocol.ErrMalformedMessage
	}
	if e, ok := err.(protocol.ErrorCode); ok && protocol.Errors[e] {
		return protocol.NewErrorResponse(e)
	}
	return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
}

func strictUnmarshal(msg []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
