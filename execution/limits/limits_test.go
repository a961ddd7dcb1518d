// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package limits

import (
	"testing"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestProcessor_GasAccumulatesWithConfiguredMultipliers(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{
		ExecutionGasMultiplier: 2,
		IOGasMultiplier:        3,
	})
	processor.Accumulate(execution.FeeStatement{
		ExecutionGas: 10,
		IOGas:        5,
		StorageFee:   1000,
	}, Summary{}, 0)

	// 10*2 + 5*3; the storage fee is not part of effective gas.
	require.Equal(uint64(35), processor.EffectiveGas())
}

func TestProcessor_StorageFeeNeverEntersEffectiveGas(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{
		ExecutionGasMultiplier: 1,
		IOGasMultiplier:        1,
	})
	processor.Accumulate(execution.FeeStatement{StorageFee: 1 << 40}, Summary{}, 0)
	require.Equal(uint64(0), processor.EffectiveGas())
}

func TestProcessor_ConflictsScaleTheCharge(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{
		ExecutionGasMultiplier: 1,
		ConflictPenaltyWindow:  8,
	})
	key := common.Key{1}
	fee := execution.FeeStatement{ExecutionGas: 100}

	// First transaction has no predecessors: multiplier 1.
	processor.Accumulate(fee, processor.Summarize([]common.Key{key}, nil), 0)
	require.Equal(uint64(100), processor.EffectiveGas())

	// Second touches the same key: one conflict, multiplier 2.
	processor.Accumulate(fee, processor.Summarize([]common.Key{key}, nil), 0)
	require.Equal(uint64(300), processor.EffectiveGas())

	// Third conflicts with both predecessors: multiplier 3.
	processor.Accumulate(fee, processor.Summarize(nil, []common.Key{key}), 0)
	require.Equal(uint64(600), processor.EffectiveGas())

	// A disjoint transaction is charged without penalty.
	processor.Accumulate(fee, processor.Summarize([]common.Key{{9}}, nil), 0)
	require.Equal(uint64(700), processor.EffectiveGas())
}

func TestProcessor_WindowForgetsOldConflicts(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{
		ExecutionGasMultiplier: 1,
		ConflictPenaltyWindow:  2,
	})
	hot := common.Key{1}
	fee := execution.FeeStatement{ExecutionGas: 10}

	processor.Accumulate(fee, processor.Summarize([]common.Key{hot}, nil), 0)
	processor.Accumulate(fee, processor.Summarize([]common.Key{{2}}, nil), 0)
	processor.Accumulate(fee, processor.Summarize([]common.Key{{3}}, nil), 0)
	gasBefore := processor.EffectiveGas()

	// The writer of the hot key has left the window of size 2; this
	// transaction is charged without penalty despite touching the key.
	processor.Accumulate(fee, processor.Summarize([]common.Key{hot}, nil), 0)
	require.Equal(gasBefore+10, processor.EffectiveGas())
}

func TestProcessor_ZeroWindowDisablesThePenalty(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{ExecutionGasMultiplier: 1})
	key := common.Key{1}
	fee := execution.FeeStatement{ExecutionGas: 10}
	for i := 0; i < 5; i++ {
		processor.Accumulate(fee, processor.Summarize([]common.Key{key}, nil), 0)
	}
	require.Equal(uint64(50), processor.EffectiveGas())
}

func TestProcessor_GasLimitEndsTheBlockAndLatches(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{
		BlockGasLimit:          100,
		ExecutionGasMultiplier: 1,
	})
	require.False(processor.ShouldEndBlock(Parallel))

	processor.Accumulate(execution.FeeStatement{ExecutionGas: 60}, Summary{}, 0)
	require.False(processor.ShouldEndBlock(Parallel))

	processor.Accumulate(execution.FeeStatement{ExecutionGas: 60}, Summary{}, 0)
	require.True(processor.ShouldEndBlock(Parallel))
	require.True(processor.ShouldEndBlock(Sequential))

	// Accumulation is monotone, so the signal never resets.
	processor.Accumulate(execution.FeeStatement{}, Summary{}, 0)
	require.True(processor.ShouldEndBlock(Parallel))
}

func TestProcessor_OutputLimitEndsTheBlock(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{BlockOutputLimit: 1 * datasize.KB})
	processor.Accumulate(execution.FeeStatement{}, Summary{}, 512)
	require.False(processor.ShouldEndBlock(Parallel))
	require.Equal(uint64(512), processor.ApproxOutputSize())

	processor.Accumulate(execution.FeeStatement{}, Summary{}, 512)
	require.True(processor.ShouldEndBlock(Parallel))
}

func TestProcessor_DisabledLimitsNeverEndTheBlock(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{ExecutionGasMultiplier: 1})
	processor.Accumulate(execution.FeeStatement{ExecutionGas: 1 << 50}, Summary{}, 1<<50)
	require.False(processor.ShouldEndBlock(Parallel))
}

func TestProcessor_CollectsFeeStatements(t *testing.T) {
	require := require.New(t)

	processor := NewProcessor(Config{})
	fees := []execution.FeeStatement{
		{ExecutionGas: 1},
		{ExecutionGas: 2},
	}
	for _, fee := range fees {
		processor.Accumulate(fee, Summary{}, 0)
	}
	require.Equal(fees, processor.FeeStatements())
}

func TestSummary_ConflictDetectionIsSymmetric(t *testing.T) {
	require := require.New(t)

	a := NewSummary([]common.Key{{1}, {2}}, nil, false)
	b := NewSummary(nil, []common.Key{{2}, {3}}, false)
	c := NewSummary([]common.Key{{4}}, nil, false)

	require.True(a.Conflicts(b))
	require.True(b.Conflicts(a))
	require.False(a.Conflicts(c))
	require.False(c.Conflicts(a))
}

func TestSummary_CollapsingMergesSlotsOfOneAccount(t *testing.T) {
	require := require.New(t)

	account := common.Address{0xaa}
	slotA := common.KeyForAccount(account, 1)
	slotB := common.KeyForAccount(account, 2)
	require.NotEqual(slotA, slotB)

	exact := NewSummary([]common.Key{slotA}, nil, false)
	require.False(exact.Conflicts(NewSummary([]common.Key{slotB}, nil, false)))

	collapsed := NewSummary([]common.Key{slotA}, nil, true)
	require.True(collapsed.Conflicts(NewSummary([]common.Key{slotB}, nil, true)))
	require.Equal(1, NewSummary([]common.Key{slotA, slotB}, nil, true).Len())
}

func TestMode_StringNamesBothModes(t *testing.T) {
	require := require.New(t)
	require.Equal("sequential", Sequential.String())
	require.Equal("parallel", Parallel.String())
}
