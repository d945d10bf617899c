package client

import (
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

// GetProperty reads a property of fixed size type t. ok reports whether the object has it.
func (c *Client) GetProperty(dev, obj registry.Handle, name string, t engine.DataType, mask engine.WaitMask) (value []byte, ok bool, err error) {
	if t == engine.TypeStringList {
		return nil, false, fmt.Errorf("property %q: use GetStringListProperty for %s", name, t)
	}
	size := engine.SizeOf(t)
	if size == 0 {
		return nil, false, fmt.Errorf("property %q: %s has no fixed size", name, t)
	}

	r, ok, err := c.getProperty(dev, obj, name, t, size, mask)
	if err != nil {
		return nil, false, err
	}
	if value, err = r.ReadRaw(size); err != nil {
		return nil, false, fmt.Errorf("reading property value: %w", err)
	}
	return value, ok, nil
}

// GetStringListProperty reads a STRING_LIST property
func (c *Client) GetStringListProperty(dev, obj registry.Handle, name string, mask engine.WaitMask) ([]string, bool, error) {
	r, ok, err := c.getProperty(dev, obj, name, engine.TypeStringList, 0, mask)
	if err != nil {
		return nil, false, err
	}
	list, err := r.ReadStringList()
	if err != nil {
		return nil, false, fmt.Errorf("reading property value: %w", err)
	}
	return list, ok, nil
}

// getProperty sends the request and returns the reply positioned at the value
func (c *Client) getProperty(dev, obj registry.Handle, name string, t engine.DataType, size uint64, mask engine.WaitMask) (*serializer.Reader, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTGetProperty, header(dev, obj), func(w *serializer.Writer) {
		w.WriteString(name)
		w.WriteDataType(t)
		w.WriteUint64(size)
		w.WriteUint32(uint32(mask))
	}, common.MsgTProperty)
	if err != nil {
		return nil, false, err
	}

	if err := expectObject(r, obj); err != nil {
		return nil, false, err
	}
	gotName, err := r.ReadString()
	if err != nil {
		return nil, false, fmt.Errorf("reading property name: %w", err)
	}
	gotType, err := r.ReadDataType()
	if err != nil {
		return nil, false, fmt.Errorf("reading property type: %w", err)
	}
	if _, err := r.ReadUint64(); err != nil {
		return nil, false, fmt.Errorf("reading property size: %w", err)
	}
	if gotName != name || gotType != t {
		return nil, false, fmt.Errorf("%w: property %q of type %s, expected %q of type %s", ErrUnexpectedReply, gotName, gotType, name, t)
	}
	success, err := r.ReadUint32()
	if err != nil {
		return nil, false, fmt.Errorf("reading property result: %w", err)
	}
	return r, success != 0, nil
}

// GetObjectSubtypes lists the subtypes the device supports for objectType
func (c *Client) GetObjectSubtypes(dev registry.Handle, objectType engine.DataType) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTGetObjectSubtypes, header(dev, 0), func(w *serializer.Writer) {
		w.WriteDataType(objectType)
	}, common.MsgTObjectSubtypes)
	if err != nil {
		return nil, err
	}

	if got, err := r.ReadDataType(); err != nil || got != objectType {
		return nil, fmt.Errorf("%w: subtypes of %s, expected %s (%v)", ErrUnexpectedReply, got, objectType, err)
	}
	return r.ReadStringList()
}

// GetObjectInfo queries information about an object type. The result is nil if the
// device has no such info, otherwise string, []string, []engine.Parameter or the raw
// bytes of a fixed size type.
func (c *Client) GetObjectInfo(dev registry.Handle, objectType engine.DataType, subtype, infoName string, infoType engine.DataType) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTGetObjectInfo, header(dev, 0), func(w *serializer.Writer) {
		w.WriteDataType(objectType)
		w.WriteString(subtype)
		w.WriteString(infoName)
		w.WriteDataType(infoType)
	}, common.MsgTObjectInfo)
	if err != nil {
		return nil, err
	}

	gotType, _ := r.ReadDataType()
	gotSubtype, _ := r.ReadString()
	gotName, _ := r.ReadString()
	gotInfoType, err := r.ReadDataType()
	if err != nil {
		return nil, fmt.Errorf("reading object info: %w", err)
	}
	if gotType != objectType || gotSubtype != subtype || gotName != infoName || gotInfoType != infoType {
		return nil, fmt.Errorf("%w: object info %q of %s %q", ErrUnexpectedReply, gotName, gotType, gotSubtype)
	}
	return decodeInfoValue(r, infoType)
}

// GetParameterInfo queries information about a parameter of an object type. The result
// has the same forms as for GetObjectInfo.
func (c *Client) GetParameterInfo(dev registry.Handle, objectType engine.DataType, subtype, paramName string, paramType engine.DataType, infoName string, infoType engine.DataType) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTGetParameterInfo, header(dev, 0), func(w *serializer.Writer) {
		w.WriteDataType(objectType)
		w.WriteString(subtype)
		w.WriteString(paramName)
		w.WriteDataType(paramType)
		w.WriteString(infoName)
		w.WriteDataType(infoType)
	}, common.MsgTParameterInfo)
	if err != nil {
		return nil, err
	}

	gotType, _ := r.ReadDataType()
	gotSubtype, _ := r.ReadString()
	gotParam, _ := r.ReadString()
	gotParamType, _ := r.ReadDataType()
	gotName, _ := r.ReadString()
	gotInfoType, err := r.ReadDataType()
	if err != nil {
		return nil, fmt.Errorf("reading parameter info: %w", err)
	}
	if gotType != objectType || gotSubtype != subtype || gotParam != paramName || gotParamType != paramType ||
		gotName != infoName || gotInfoType != infoType {
		return nil, fmt.Errorf("%w: parameter info %q of %q", ErrUnexpectedReply, gotName, gotParam)
	}
	return decodeInfoValue(r, infoType)
}

// decodeInfoValue reads an info value of the given type, nil if the reply carries none
func decodeInfoValue(r *serializer.Reader, infoType engine.DataType) (any, error) {
	if r.EOF() {
		return nil, nil
	}

	switch infoType {
	case engine.TypeString:
		return r.ReadString()
	case engine.TypeStringList:
		return r.ReadStringList()
	case engine.TypeParameterList:
		return r.ReadParameterList()
	}

	size := engine.SizeOf(infoType)
	if size == 0 {
		return nil, fmt.Errorf("info values of type %s can not be decoded", infoType)
	}
	return r.ReadRaw(size)
}
