package frame

import (
	"github.com/cockroachdb/errors"
)

type slotState int

const (
	slotIdle slotState = iota
	slotAcquired
	slotRecording
	slotInFlight
)

func (s slotState) String() string {
	switch s {
	case slotIdle:
		return "idle"
	case slotAcquired:
		return "acquired"
	case slotRecording:
		return "recording"
	case slotInFlight:
		return "in-flight"
	}
	return "unknown"
}

// Slot is one frame-in-flight context: a command buffer plus the signals
// ordering acquire, render and present, and the gate that blocks reuse
// until the device has finished the slot's last submission.
type Slot struct {
	Index int

	Commands      CommandBuffer
	AcquireSignal Semaphore
	SubmitSignal  Semaphore
	InFlightGate  Fence

	state slotState
}

// SlotPool is a fixed arena of frame slots indexed by sequence number modulo
// the pool size. It is never resized after construction.
type SlotPool struct {
	slots []Slot
}

func NewSlotPool(dev Device, size int) (*SlotPool, error) {
	if size < 1 {
		return nil, errors.Errorf("slot pool: size must be positive, got %d", size)
	}

	pool := &SlotPool{slots: make([]Slot, size)}
	for i := range pool.slots {
		err := pool.initSlot(dev, &pool.slots[i], i)
		if err != nil {
			pool.Destroy()
			return nil, err
		}
	}

	return pool, nil
}

func (p *SlotPool) initSlot(dev Device, slot *Slot, index int) error {
	var err error
	slot.Index = index

	slot.Commands, err = dev.AllocateCommandBuffer()
	if err != nil {
		return errors.Wrapf(err, "allocate command buffer for slot %d", index)
	}

	slot.AcquireSignal, err = dev.CreateSemaphore()
	if err != nil {
		return errors.Wrapf(err, "create acquire semaphore for slot %d", index)
	}

	slot.SubmitSignal, err = dev.CreateSemaphore()
	if err != nil {
		return errors.Wrapf(err, "create submit semaphore for slot %d", index)
	}

	// Created signaled so the first Acquire of each slot does not block.
	slot.InFlightGate, err = dev.CreateFence(true)
	if err != nil {
		return errors.Wrapf(err, "create in-flight fence for slot %d", index)
	}

	return nil
}

func (p *SlotPool) Size() int {
	return len(p.slots)
}

// Index maps a frame sequence number onto a slot index.
func (p *SlotPool) Index(seq uint64) int {
	return int(seq % uint64(len(p.slots)))
}

// Acquire returns the slot for seq once the device has finished the slot's
// previous submission. This is the loop's backpressure point.
func (p *SlotPool) Acquire(seq uint64) (*Slot, error) {
	slot := &p.slots[p.Index(seq)]
	if slot.state == slotRecording {
		return nil, errors.AssertionFailedf("slot %d acquired while still recording", slot.Index)
	}

	err := slot.InFlightGate.Wait()
	if err != nil {
		return nil, errors.Wrapf(err, "wait for slot %d", slot.Index)
	}

	slot.state = slotAcquired
	return slot, nil
}

// BeginRecording re-arms the slot's gate and resets its command buffer. It
// must follow Acquire for the same slot.
func (p *SlotPool) BeginRecording(slot *Slot) error {
	if slot.state != slotAcquired {
		return errors.AssertionFailedf("begin recording on slot %d in state %s", slot.Index, slot.state)
	}

	err := slot.InFlightGate.Reset()
	if err != nil {
		return errors.Wrapf(err, "reset fence for slot %d", slot.Index)
	}

	err = slot.Commands.Reset()
	if err != nil {
		return errors.Wrapf(err, "reset command buffer for slot %d", slot.Index)
	}

	err = slot.Commands.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin command buffer for slot %d", slot.Index)
	}

	slot.state = slotRecording
	return nil
}

// Submit ends recording and queues the slot's work. The submit signal is
// satisfied and the gate opens when the device completes it.
func (p *SlotPool) Submit(slot *Slot, queue Queue) error {
	if slot.state != slotRecording {
		return errors.AssertionFailedf("submit on slot %d in state %s", slot.Index, slot.state)
	}

	err := slot.Commands.End()
	if err != nil {
		return errors.Wrapf(err, "end command buffer for slot %d", slot.Index)
	}

	err = queue.Submit(Submission{
		Commands: slot.Commands,
		Wait:     slot.AcquireSignal,
		Signal:   slot.SubmitSignal,
		Fence:    slot.InFlightGate,
	})
	if err != nil {
		return errors.Wrapf(err, "submit slot %d", slot.Index)
	}

	slot.state = slotInFlight
	return nil
}

// Release returns an acquired slot whose iteration ended without recording,
// leaving its gate untouched.
func (p *SlotPool) Release(slot *Slot) {
	if slot.state == slotAcquired {
		slot.state = slotIdle
	}
}

// Destroy frees every slot's primitives. The device must be idle.
func (p *SlotPool) Destroy() {
	for i := range p.slots {
		slot := &p.slots[i]
		if slot.InFlightGate != nil {
			slot.InFlightGate.Destroy()
			slot.InFlightGate = nil
		}
		if slot.SubmitSignal != nil {
			slot.SubmitSignal.Destroy()
			slot.SubmitSignal = nil
		}
		if slot.AcquireSignal != nil {
			slot.AcquireSignal.Destroy()
			slot.AcquireSignal = nil
		}
		if slot.Commands != nil {
			slot.Commands.Free()
			slot.Commands = nil
		}
		slot.state = slotIdle
	}
}
