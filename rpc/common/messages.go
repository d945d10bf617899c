package common

import "fmt"

// --------------------------------------------------------------------------
// Message Types
// --------------------------------------------------------------------------

// MessageType is the type code carried in every frame. The numeric values are part
// of the wire protocol, new types must be appended.
type MessageType uint32

const (
	MsgTUnknown MessageType = iota

	// device and object lifecycle

	MsgTNewDevice      // Create a device (request)
	MsgTDeviceHandle   // Assigned device handle and server codecs (reply to NewDevice)
	MsgTNewObject      // Create an object under a client chosen handle
	MsgTNewArray       // Create an array, optionally with initial data
	MsgTSetParam       // Set a parameter
	MsgTUnsetParam     // Remove a parameter
	MsgTUnsetAllParams // Remove all parameters
	MsgTCommitParams   // Commit pending parameters
	MsgTRelease        // Drop a public reference
	MsgTRetain         // Add a public reference

	// array data

	MsgTMapArray      // Read array data (request)
	MsgTArrayMapped   // Array data (reply to MapArray)
	MsgTUnmapArray    // Write back array data (request)
	MsgTArrayUnmapped // Acknowledge (reply to UnmapArray)

	// frames

	MsgTRenderFrame  // Render a frame and send its channels
	MsgTChannelColor // Color channel (reply to RenderFrame)
	MsgTChannelDepth // Depth channel (reply to RenderFrame)
	MsgTFrameReady   // Wait for or poll a frame (request)
	MsgTFrameIsReady // Acknowledge (reply to FrameReady)

	// introspection

	MsgTGetProperty       // Read an object property (request)
	MsgTProperty          // Property value (reply to GetProperty)
	MsgTGetObjectSubtypes // List subtypes of an object type (request)
	MsgTObjectSubtypes    // Subtype list (reply to GetObjectSubtypes)
	MsgTGetObjectInfo     // Query object type info (request)
	MsgTObjectInfo        // Object info (reply to GetObjectInfo)
	MsgTGetParameterInfo  // Query parameter info (request)
	MsgTParameterInfo     // Parameter info (reply to GetParameterInfo)

	msgTCount
)

var messageTypeNames = [...]string{
	MsgTUnknown:           "Unknown",
	MsgTNewDevice:         "NewDevice",
	MsgTDeviceHandle:      "DeviceHandle",
	MsgTNewObject:         "NewObject",
	MsgTNewArray:          "NewArray",
	MsgTSetParam:          "SetParam",
	MsgTUnsetParam:        "UnsetParam",
	MsgTUnsetAllParams:    "UnsetAllParams",
	MsgTCommitParams:      "CommitParams",
	MsgTRelease:           "Release",
	MsgTRetain:            "Retain",
	MsgTMapArray:          "MapArray",
	MsgTArrayMapped:       "ArrayMapped",
	MsgTUnmapArray:        "UnmapArray",
	MsgTArrayUnmapped:     "ArrayUnmapped",
	MsgTRenderFrame:       "RenderFrame",
	MsgTChannelColor:      "ChannelColor",
	MsgTChannelDepth:      "ChannelDepth",
	MsgTFrameReady:        "FrameReady",
	MsgTFrameIsReady:      "FrameIsReady",
	MsgTGetProperty:       "GetProperty",
	MsgTProperty:          "Property",
	MsgTGetObjectSubtypes: "GetObjectSubtypes",
	MsgTObjectSubtypes:    "ObjectSubtypes",
	MsgTGetObjectInfo:     "GetObjectInfo",
	MsgTObjectInfo:        "ObjectInfo",
	MsgTGetParameterInfo:  "GetParameterInfo",
	MsgTParameterInfo:     "ParameterInfo",
}

// String returns the name of the message type
func (t MessageType) String() string {
	if t < msgTCount {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", uint32(t))
}

// IsReply reports whether messages of this type are only sent by the server
func (t MessageType) IsReply() bool {
	switch t {
	case MsgTDeviceHandle, MsgTArrayMapped, MsgTArrayUnmapped, MsgTChannelColor, MsgTChannelDepth,
		MsgTFrameIsReady, MsgTProperty, MsgTObjectSubtypes, MsgTObjectInfo, MsgTParameterInfo:
		return true
	}
	return false
}

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	return t > MsgTUnknown && t < msgTCount
}
