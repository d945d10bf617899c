package engine

import "fmt"

// --------------------------------------------------------------------------
// Data Types
// --------------------------------------------------------------------------

// DataType identifies the type of parameter values, array elements, properties and objects.
// The numeric values are part of the wire protocol and must not be changed.
type DataType uint32

const (
	TypeUnknown       DataType = 0
	TypeDataType      DataType = 100
	TypeString        DataType = 101
	TypeVoidPointer   DataType = 102
	TypeBool          DataType = 103
	TypeStringList    DataType = 150
	TypeDataTypeList  DataType = 151
	TypeParameterList DataType = 152

	TypeLibrary      DataType = 500
	TypeDevice       DataType = 501
	TypeObject       DataType = 502
	TypeArray        DataType = 503
	TypeArray1D      DataType = 504
	TypeArray2D      DataType = 505
	TypeArray3D      DataType = 506
	TypeCamera       DataType = 507
	TypeFrame        DataType = 508
	TypeGeometry     DataType = 509
	TypeGroup        DataType = 510
	TypeInstance     DataType = 511
	TypeLight        DataType = 512
	TypeMaterial     DataType = 513
	TypeRenderer     DataType = 514
	TypeSurface      DataType = 515
	TypeSampler      DataType = 516
	TypeSpatialField DataType = 517
	TypeVolume       DataType = 518
	TypeWorld        DataType = 519

	TypeInt8        DataType = 1000
	TypeInt8Vec2    DataType = 1001
	TypeInt8Vec3    DataType = 1002
	TypeInt8Vec4    DataType = 1003
	TypeUint8       DataType = 1004
	TypeUint8Vec2   DataType = 1005
	TypeUint8Vec3   DataType = 1006
	TypeUint8Vec4   DataType = 1007
	TypeInt16       DataType = 1008
	TypeInt16Vec2   DataType = 1009
	TypeInt16Vec3   DataType = 1010
	TypeInt16Vec4   DataType = 1011
	TypeUint16      DataType = 1012
	TypeUint16Vec2  DataType = 1013
	TypeUint16Vec3  DataType = 1014
	TypeUint16Vec4  DataType = 1015
	TypeInt32       DataType = 1016
	TypeInt32Vec2   DataType = 1017
	TypeInt32Vec3   DataType = 1018
	TypeInt32Vec4   DataType = 1019
	TypeUint32      DataType = 1020
	TypeUint32Vec2  DataType = 1021
	TypeUint32Vec3  DataType = 1022
	TypeUint32Vec4  DataType = 1023
	TypeInt64       DataType = 1024
	TypeInt64Vec2   DataType = 1025
	TypeInt64Vec3   DataType = 1026
	TypeInt64Vec4   DataType = 1027
	TypeUint64      DataType = 1028
	TypeUint64Vec2  DataType = 1029
	TypeUint64Vec3  DataType = 1030
	TypeUint64Vec4  DataType = 1031
	TypeFixed8      DataType = 1032
	TypeUfixed8     DataType = 1036
	TypeUfixed8Vec2 DataType = 1037
	TypeUfixed8Vec3 DataType = 1038
	TypeUfixed8Vec4 DataType = 1039
	TypeFixed16     DataType = 1040
	TypeUfixed16    DataType = 1044
	TypeFixed32     DataType = 1048
	TypeUfixed32    DataType = 1052
	TypeFloat16     DataType = 1056
	TypeFloat32     DataType = 1068
	TypeFloat32Vec2 DataType = 1069
	TypeFloat32Vec3 DataType = 1070
	TypeFloat32Vec4 DataType = 1071
	TypeFloat64     DataType = 1072
	TypeFloat64Vec2 DataType = 1073
	TypeFloat64Vec3 DataType = 1074
	TypeFloat64Vec4 DataType = 1075

	TypeUfixed8RSRGB    DataType = 2000
	TypeUfixed8RASRGB   DataType = 2001
	TypeUfixed8RGBSRGB  DataType = 2002
	TypeUfixed8RGBASRGB DataType = 2003

	TypeFloat32Mat2   DataType = 2012
	TypeFloat32Mat3   DataType = 2013
	TypeFloat32Mat4   DataType = 2014
	TypeFloat32Mat2x3 DataType = 2015
	TypeFloat32Mat3x4 DataType = 2016
)

// ObjectHandleSize is the width of an object reference inside arrays and parameters.
// Handles on the wire have the same width.
const ObjectHandleSize = 8

// scalarFamilies lists the numeric families laid out as 4 consecutive tags (scalar, vec2, vec3, vec4)
var scalarFamilies = []struct {
	base DataType
	size uint64
	name string
}{
	{TypeInt8, 1, "INT8"},
	{TypeUint8, 1, "UINT8"},
	{TypeInt16, 2, "INT16"},
	{TypeUint16, 2, "UINT16"},
	{TypeInt32, 4, "INT32"},
	{TypeUint32, 4, "UINT32"},
	{TypeInt64, 8, "INT64"},
	{TypeUint64, 8, "UINT64"},
	{TypeFixed8, 1, "FIXED8"},
	{TypeUfixed8, 1, "UFIXED8"},
	{TypeFixed16, 2, "FIXED16"},
	{TypeUfixed16, 2, "UFIXED16"},
	{TypeFixed32, 4, "FIXED32"},
	{TypeUfixed32, 4, "UFIXED32"},
	{TypeFloat16, 2, "FLOAT16"},
	{TypeFloat32, 4, "FLOAT32"},
	{TypeFloat64, 8, "FLOAT64"},
}

var namedTypes = map[DataType]string{
	TypeUnknown:         "UNKNOWN",
	TypeDataType:        "DATA_TYPE",
	TypeString:          "STRING",
	TypeVoidPointer:     "VOID_POINTER",
	TypeBool:            "BOOL",
	TypeStringList:      "STRING_LIST",
	TypeDataTypeList:    "DATA_TYPE_LIST",
	TypeParameterList:   "PARAMETER_LIST",
	TypeLibrary:         "LIBRARY",
	TypeDevice:          "DEVICE",
	TypeObject:          "OBJECT",
	TypeArray:           "ARRAY",
	TypeArray1D:         "ARRAY1D",
	TypeArray2D:         "ARRAY2D",
	TypeArray3D:         "ARRAY3D",
	TypeCamera:          "CAMERA",
	TypeFrame:           "FRAME",
	TypeGeometry:        "GEOMETRY",
	TypeGroup:           "GROUP",
	TypeInstance:        "INSTANCE",
	TypeLight:           "LIGHT",
	TypeMaterial:        "MATERIAL",
	TypeRenderer:        "RENDERER",
	TypeSurface:         "SURFACE",
	TypeSampler:         "SAMPLER",
	TypeSpatialField:    "SPATIAL_FIELD",
	TypeVolume:          "VOLUME",
	TypeWorld:           "WORLD",
	TypeUfixed8RSRGB:    "UFIXED8_R_SRGB",
	TypeUfixed8RASRGB:   "UFIXED8_RA_SRGB",
	TypeUfixed8RGBSRGB:  "UFIXED8_RGB_SRGB",
	TypeUfixed8RGBASRGB: "UFIXED8_RGBA_SRGB",
	TypeFloat32Mat2:     "FLOAT32_MAT2",
	TypeFloat32Mat3:     "FLOAT32_MAT3",
	TypeFloat32Mat4:     "FLOAT32_MAT4",
	TypeFloat32Mat2x3:   "FLOAT32_MAT2x3",
	TypeFloat32Mat3x4:   "FLOAT32_MAT3x4",
}

// SizeOf returns the size in bytes of a single value of the given type.
// Object types have the size of a handle. Types without a fixed size
// (strings, lists, unknown tags) return 0.
func SizeOf(t DataType) uint64 {
	if IsObject(t) {
		return ObjectHandleSize
	}

	switch t {
	case TypeDataType:
		return 4
	case TypeBool:
		return 1
	case TypeVoidPointer:
		return 8
	case TypeUfixed8RSRGB:
		return 1
	case TypeUfixed8RASRGB:
		return 2
	case TypeUfixed8RGBSRGB:
		return 3
	case TypeUfixed8RGBASRGB:
		return 4
	case TypeFloat32Mat2:
		return 4 * 4
	case TypeFloat32Mat3:
		return 9 * 4
	case TypeFloat32Mat4:
		return 16 * 4
	case TypeFloat32Mat2x3:
		return 6 * 4
	case TypeFloat32Mat3x4:
		return 12 * 4
	}

	for _, f := range scalarFamilies {
		if t >= f.base && t < f.base+4 {
			return f.size * uint64(t-f.base+1)
		}
	}
	return 0
}

// IsObject reports whether the type tag denotes a handle-bearing object
// (arrays and the device included).
func IsObject(t DataType) bool {
	return t == TypeDevice || (t >= TypeObject && t <= TypeWorld)
}

// IsArray reports whether the type tag denotes an array object
func IsArray(t DataType) bool {
	return t >= TypeArray && t <= TypeArray3D
}

// String returns the canonical name of the data type
func (t DataType) String() string {
	if name, ok := namedTypes[t]; ok {
		return name
	}
	for _, f := range scalarFamilies {
		if t >= f.base && t < f.base+4 {
			if t == f.base {
				return f.name
			}
			return fmt.Sprintf("%s_VEC%d", f.name, t-f.base+1)
		}
	}
	return fmt.Sprintf("DataType(%d)", uint32(t))
}

// --------------------------------------------------------------------------
// Handles, Flags and Status
// --------------------------------------------------------------------------

// Object is an engine-local object reference. The zero value is the null object.
type Object uint64

// WaitMask selects between polling and blocking for frame and property queries
type WaitMask uint32

const (
	NoWait WaitMask = 0
	Wait   WaitMask = 1
)

// Parameter names a parameter together with its type, as listed by PARAMETER_LIST infos
type Parameter struct {
	Name string
	Type DataType
}

// Severity classifies messages reported through a StatusFunc
type Severity int

const (
	SeverityFatal Severity = iota + 1
	SeverityError
	SeverityWarning
	SeverityPerformance
	SeverityInfo
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "FATAL"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARN"
	case SeverityPerformance:
		return "PERF"
	case SeverityInfo:
		return "INFO"
	case SeverityDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// StatusCode is a coarse category attached to status reports
type StatusCode int

const (
	StatusNoError StatusCode = iota
	StatusUnknownError
	StatusInvalidArgument
	StatusInvalidOperation
	StatusOutOfMemory
	StatusUnsupportedDevice
	StatusVersionMismatch
)

// StatusFunc receives asynchronous diagnostics from an engine. source is the
// object that caused the report (0 if none), sourceType its type.
type StatusFunc func(severity Severity, code StatusCode, source Object, sourceType DataType, message string)
