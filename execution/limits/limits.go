// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package limits bounds the resource consumption of a block. A processor
// accumulates the effective cost of committed transactions and signals when
// the block should stop admitting further work. Transactions conflicting
// with recently committed neighbors cost more to execute speculatively, so
// their gas is scaled by a conflict multiplier to reflect the actual
// marginal cost of parallel execution.
package limits

import (
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/c2h5oh/datasize"
)

// Mode distinguishes the two execution strategies a block can run under.
type Mode int

const (
	Sequential Mode = iota
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// Config are the per-block resource bounds and cost weights. Zero-valued
// limits are disabled.
type Config struct {
	// BlockGasLimit caps the accumulated effective gas of a block.
	BlockGasLimit uint64
	// BlockOutputLimit caps the accumulated approximate output size.
	BlockOutputLimit datasize.ByteSize
	// ExecutionGasMultiplier and IOGasMultiplier weigh the gas components
	// of a fee statement. The storage fee is never part of effective gas,
	// as it does not reflect execution cost.
	ExecutionGasMultiplier uint64
	IOGasMultiplier        uint64
	// ConflictPenaltyWindow is the number of recent transaction summaries
	// kept for conflict detection; 0 disables the penalty.
	ConflictPenaltyWindow int
	// CollapseResourceGroups detects conflicts at resource-group
	// granularity instead of exact keys.
	CollapseResourceGroups bool
}

// Processor accumulates the cost of a block's committed transactions. It is
// owned by the scheduler loop and passed by exclusive reference; it is not
// safe for concurrent use.
type Processor struct {
	config       Config
	effectiveGas uint64
	approxOutput uint64
	window       []Summary
	fees         []execution.FeeStatement
}

// NewProcessor creates a fresh accumulator for one block.
func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// Accumulate charges one committed transaction: its fee statement scaled by
// the conflict multiplier, and its approximate output size.
func (p *Processor) Accumulate(fee execution.FeeStatement, summary Summary, approxOutputSize uint64) {
	multiplier := uint64(1)
	if window := p.config.ConflictPenaltyWindow; window > 0 {
		p.window = append(p.window, summary)
		if len(p.window) > window {
			p.window = p.window[1:]
		}
		conflicts := uint64(0)
		for _, previous := range p.window[:len(p.window)-1] {
			if summary.Conflicts(previous) {
				conflicts++
			}
		}
		multiplier = conflicts + 1
		if multiplier > uint64(window) {
			panic(fmt.Sprintf("conflict multiplier %d exceeds window size %d", multiplier, window))
		}
	}
	p.effectiveGas += multiplier * (fee.ExecutionGas*p.config.ExecutionGasMultiplier + fee.IOGas*p.config.IOGasMultiplier)
	p.approxOutput += approxOutputSize
	p.fees = append(p.fees, fee)
}

// Summarize builds the conflict summary of a transaction under the
// processor's granularity configuration.
func (p *Processor) Summarize(reads, writes []common.Key) Summary {
	return NewSummary(reads, writes, p.config.CollapseResourceGroups)
}

// ShouldEndBlock reports whether a configured block limit has been reached.
// Once true it stays true for the rest of the block. The scheduler stops
// admitting new transactions when this triggers; in parallel mode no new
// speculative executions are launched, in sequential mode no further
// transactions are processed. Work already admitted still completes.
func (p *Processor) ShouldEndBlock(Mode) bool {
	if limit := p.config.BlockGasLimit; limit > 0 && p.effectiveGas >= limit {
		return true
	}
	if limit := uint64(p.config.BlockOutputLimit); limit > 0 && p.approxOutput >= limit {
		return true
	}
	return false
}

// EffectiveGas returns the accumulated conflict-scaled gas.
func (p *Processor) EffectiveGas() uint64 {
	return p.effectiveGas
}

// ApproxOutputSize returns the accumulated approximate output size.
func (p *Processor) ApproxOutputSize() uint64 {
	return p.approxOutput
}

// FeeStatements returns the per-transaction fee statements collected so
// far, retained for post-block metrics.
func (p *Processor) FeeStatements() []execution.FeeStatement {
	return p.fees
}
