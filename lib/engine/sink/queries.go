package sink

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/ValentinKolb/dRender/lib/engine"
)

// --------------------------------------------------------------------------
// Introspection Tables
// --------------------------------------------------------------------------

var subtypes = map[engine.DataType][]string{
	engine.TypeDevice:       {"default", LibraryName},
	engine.TypeCamera:       {"perspective", "orthographic", "omnidirectional"},
	engine.TypeGeometry:     {"cone", "curve", "cylinder", "quad", "sphere", "triangle"},
	engine.TypeInstance:     {"transform"},
	engine.TypeLight:        {"directional", "point", "quad", "ring", "spot", "hdri"},
	engine.TypeMaterial:     {"matte", "physicallyBased"},
	engine.TypeRenderer:     {"default"},
	engine.TypeSampler:      {"image1D", "image2D", "image3D", "primitive", "transform"},
	engine.TypeSpatialField: {"structuredRegular"},
	engine.TypeVolume:       {"transferFunction1D"},
}

type paramSpec struct {
	engine.Parameter
	required    bool
	description string
	def         []byte
}

type objectKey struct {
	typ     engine.DataType
	subtype string
}

func p(name string, t engine.DataType, description string) paramSpec {
	return paramSpec{Parameter: engine.Parameter{Name: name, Type: t}, description: description}
}

func required(s paramSpec) paramSpec {
	s.required = true
	return s
}

func withDefault(s paramSpec, v float32) paramSpec {
	s.def = make([]byte, 4)
	binary.LittleEndian.PutUint32(s.def, math.Float32bits(v))
	return s
}

var (
	cameraBase = []paramSpec{
		p("position", engine.TypeFloat32Vec3, "camera position"),
		p("direction", engine.TypeFloat32Vec3, "main viewing direction"),
		p("up", engine.TypeFloat32Vec3, "up direction of the camera"),
		withDefault(p("aspect", engine.TypeFloat32, "ratio of width by height of the frame"), 1),
	}
	lightBase = []paramSpec{
		p("color", engine.TypeFloat32Vec3, "color of the light"),
		p("visible", engine.TypeBool, "whether the light can be seen directly"),
	}
	vertexPosition = required(p("vertex.position", engine.TypeArray1D, "vertex positions"))
)

var parameters = map[objectKey][]paramSpec{
	{engine.TypeCamera, "perspective"}:     append(cameraBase, withDefault(p("fovy", engine.TypeFloat32, "field of view angle in y in radians"), math.Pi/3)),
	{engine.TypeCamera, "orthographic"}:    append(cameraBase, withDefault(p("height", engine.TypeFloat32, "height of the image plane in world units"), 1)),
	{engine.TypeCamera, "omnidirectional"}: cameraBase,

	{engine.TypeGeometry, "triangle"}: {vertexPosition, p("vertex.normal", engine.TypeArray1D, "vertex normals"), p("vertex.color", engine.TypeArray1D, "vertex colors"), p("primitive.index", engine.TypeArray1D, "triangle indices")},
	{engine.TypeGeometry, "quad"}:     {vertexPosition, p("primitive.index", engine.TypeArray1D, "quad indices")},
	{engine.TypeGeometry, "sphere"}:   {vertexPosition, p("vertex.radius", engine.TypeArray1D, "per sphere radius"), withDefault(p("radius", engine.TypeFloat32, "global sphere radius"), 0.01)},
	{engine.TypeGeometry, "cylinder"}: {vertexPosition, withDefault(p("radius", engine.TypeFloat32, "global cylinder radius"), 1)},
	{engine.TypeGeometry, "cone"}:     {vertexPosition, p("vertex.radius", engine.TypeArray1D, "per vertex radius")},
	{engine.TypeGeometry, "curve"}:    {vertexPosition, p("vertex.radius", engine.TypeArray1D, "per vertex radius")},

	{engine.TypeLight, "directional"}: append(lightBase, p("direction", engine.TypeFloat32Vec3, "main emission direction"), withDefault(p("irradiance", engine.TypeFloat32, "received irradiance"), 1)),
	{engine.TypeLight, "point"}:       append(lightBase, p("position", engine.TypeFloat32Vec3, "light position"), withDefault(p("intensity", engine.TypeFloat32, "radiant intensity"), 1)),
	{engine.TypeLight, "spot"}:        append(lightBase, p("position", engine.TypeFloat32Vec3, "light position"), p("direction", engine.TypeFloat32Vec3, "main emission direction"), withDefault(p("openingAngle", engine.TypeFloat32, "full opening angle in radians"), math.Pi)),
	{engine.TypeLight, "quad"}:        lightBase,
	{engine.TypeLight, "ring"}:        lightBase,
	{engine.TypeLight, "hdri"}:        append(lightBase, required(p("radiance", engine.TypeArray2D, "environment map"))),

	{engine.TypeMaterial, "matte"}:           {p("color", engine.TypeFloat32Vec3, "diffuse color"), withDefault(p("opacity", engine.TypeFloat32, "opacity"), 1)},
	{engine.TypeMaterial, "physicallyBased"}: {p("baseColor", engine.TypeFloat32Vec3, "base color"), withDefault(p("metallic", engine.TypeFloat32, "metalness"), 1), withDefault(p("roughness", engine.TypeFloat32, "roughness"), 1), withDefault(p("opacity", engine.TypeFloat32, "opacity"), 1)},

	{engine.TypeRenderer, "default"}: {p("background", engine.TypeFloat32Vec4, "background color"), withDefault(p("ambientRadiance", engine.TypeFloat32, "ambient light"), 0)},

	{engine.TypeSampler, "image1D"}:   {required(p("image", engine.TypeArray1D, "texel data")), p("inAttribute", engine.TypeString, "input surface attribute")},
	{engine.TypeSampler, "image2D"}:   {required(p("image", engine.TypeArray2D, "texel data")), p("inAttribute", engine.TypeString, "input surface attribute")},
	{engine.TypeSampler, "image3D"}:   {required(p("image", engine.TypeArray3D, "texel data")), p("inAttribute", engine.TypeString, "input surface attribute")},
	{engine.TypeSampler, "primitive"}: {required(p("array", engine.TypeArray1D, "per primitive values"))},
	{engine.TypeSampler, "transform"}: {p("transform", engine.TypeFloat32Mat4, "attribute transform")},

	{engine.TypeSpatialField, "structuredRegular"}: {required(p("data", engine.TypeArray3D, "vertex centered voxel data")), p("origin", engine.TypeFloat32Vec3, "grid origin"), p("spacing", engine.TypeFloat32Vec3, "grid spacing")},
	{engine.TypeVolume, "transferFunction1D"}:      {required(p("value", engine.TypeSpatialField, "spatial field")), p("color", engine.TypeArray1D, "color map"), p("opacity", engine.TypeArray1D, "opacity map")},

	{engine.TypeInstance, "transform"}: {required(p("group", engine.TypeGroup, "instanced group")), p("transform", engine.TypeFloat32Mat3x4, "world transform")},

	{engine.TypeFrame, ""}: {
		required(p("size", engine.TypeUint32Vec2, "frame size in pixels")),
		p(ChannelColor, engine.TypeDataType, "color channel format"),
		p(ChannelDepth, engine.TypeDataType, "depth channel format"),
		p("world", engine.TypeWorld, "world to render"),
		p("camera", engine.TypeCamera, "camera to render with"),
		p("renderer", engine.TypeRenderer, "renderer to use"),
	},
	{engine.TypeWorld, ""}:   {p("instance", engine.TypeArray1D, "instances"), p("surface", engine.TypeArray1D, "surfaces"), p("volume", engine.TypeArray1D, "volumes"), p("light", engine.TypeArray1D, "lights")},
	{engine.TypeGroup, ""}:   {p("surface", engine.TypeArray1D, "surfaces"), p("volume", engine.TypeArray1D, "volumes"), p("light", engine.TypeArray1D, "lights")},
	{engine.TypeSurface, ""}: {required(p("geometry", engine.TypeGeometry, "surface geometry")), p("material", engine.TypeMaterial, "surface material")},
}

// common to all objects
var nameParam = p("name", engine.TypeString, "object name used in diagnostics")

// lookupParams returns the parameters of an object type, nil if the type is unknown
func lookupParams(t engine.DataType, subtype string) []paramSpec {
	specs, ok := parameters[objectKey{t, subtype}]
	if !ok {
		return nil
	}
	return append([]paramSpec{nameParam}, specs...)
}

// objectInfo answers GetObjectInfo
func objectInfo(t engine.DataType, subtype, infoName string, infoType engine.DataType) any {
	specs := lookupParams(t, subtype)
	if specs == nil {
		return nil
	}

	switch {
	case infoName == "description" && infoType == engine.TypeString:
		if subtype == "" {
			return fmt.Sprintf("sink %s", strings.ToLower(t.String()))
		}
		return fmt.Sprintf("sink %s %s", subtype, strings.ToLower(t.String()))
	case infoName == "parameter" && infoType == engine.TypeParameterList:
		out := make([]engine.Parameter, len(specs))
		for i, s := range specs {
			out[i] = s.Parameter
		}
		return out
	case infoName == "channel" && infoType == engine.TypeStringList && t == engine.TypeFrame:
		return []string{ChannelColor, ChannelDepth}
	}
	return nil
}

// parameterInfo answers GetParameterInfo
func parameterInfo(t engine.DataType, subtype, paramName string, paramType engine.DataType, infoName string, infoType engine.DataType) any {
	var spec *paramSpec
	for _, s := range lookupParams(t, subtype) {
		if s.Name == paramName && s.Type == paramType {
			spec = &s
			break
		}
	}
	if spec == nil {
		return nil
	}

	switch {
	case infoName == "description" && infoType == engine.TypeString:
		return spec.description
	case infoName == "required" && infoType == engine.TypeBool:
		if spec.required {
			return []byte{1}
		}
		return []byte{0}
	case infoName == "default" && infoType == paramType && spec.def != nil:
		return append([]byte(nil), spec.def...)
	}
	return nil
}
