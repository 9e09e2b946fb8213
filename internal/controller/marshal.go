package controller

import (
	"github.com/coruntime/modelc/internal/model"
)

// marshalModelToAdapter implements the MODEL->ADAPTER marshaling
// direction: every function channel's staged scalar values are copied
// into the Signal Store's final_val, and any accumulated binary payload is
// appended onto the signal's authoritative buffer and then reset on the
// model side so the next tick starts empty.
//
// A scalar value is only republished when it differs from PrevScalar, the
// value last delivered by marshalAdapterToModel: a binding that only reads
// a shared channel never touches Scalar, so Scalar stays equal to
// PrevScalar and this function leaves the channel's final_val exactly as
// whatever the actual writer published. Binary payloads need no such
// guard: an empty buffer appends zero bytes, a genuine no-op.
func (c *Controller) marshalModelToAdapter() {
	for _, inst := range c.instances {
		inst.Ctrl.Functions.Range(func(_ string, fn *model.Function) bool {
			fn.Channels.Range(func(channelName string, fc *model.FunctionChannel) bool {
				sm, err := c.adapter.GetSignalMap(inst.Adapter, channelName, fc.Signals)
				if err != nil {
					return true
				}
				for i, entry := range sm {
					if fc.Scalar != nil && fc.Scalar[i] != fc.PrevScalar[i] {
						entry.Signal.FinalVal = fc.Scalar[i]
					}
					if fc.Binary != nil {
						bin := &fc.Binary[i]
						entry.Signal.AppendBin(bin.Bytes())
						bin.Reset()
					}
				}
				return true
			})
			return true
		})
	}
}

// marshalAdapterToModel implements the ADAPTER->MODEL marshaling
// direction: the Signal Store's val (the round just delivered by the
// bus) is copied into each function channel's scalar staging array, and
// any authoritative binary payload is appended onto the model-local
// buffer.
//
// Copying and resetting the binary payload are split into two passes over
// every instance's bindings: a channel shared by several instances backs
// all of their bindings with the very same Signal, so every binding must
// get a chance to copy its bytes out before any of them resets it. A
// single combined pass would let whichever binding is visited first
// consume the payload and erase it for the rest.
func (c *Controller) marshalAdapterToModel() {
	for _, inst := range c.instances {
		inst.Ctrl.Functions.Range(func(_ string, fn *model.Function) bool {
			fn.Channels.Range(func(channelName string, fc *model.FunctionChannel) bool {
				sm, err := c.adapter.GetSignalMap(inst.Adapter, channelName, fc.Signals)
				if err != nil {
					return true
				}
				for i, entry := range sm {
					if fc.Scalar != nil {
						fc.Scalar[i] = entry.Signal.Val
						fc.PrevScalar[i] = entry.Signal.Val
					}
					if fc.Binary != nil {
						fc.Binary[i].Append(entry.Signal.Bin)
					}
				}
				return true
			})
			return true
		})
	}
	for _, inst := range c.instances {
		inst.Ctrl.Functions.Range(func(_ string, fn *model.Function) bool {
			fn.Channels.Range(func(channelName string, fc *model.FunctionChannel) bool {
				if fc.Binary == nil {
					return true
				}
				sm, err := c.adapter.GetSignalMap(inst.Adapter, channelName, fc.Signals)
				if err != nil {
					return true
				}
				for _, entry := range sm {
					entry.Signal.ResetBin()
				}
				return true
			})
			return true
		})
	}
}
