package event

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a command for the WAL.
func Encode(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// Decode rebuilds a command from its WAL type and payload.
func Decode(t Type, payload []byte) (Command, error) {
	var cmd Command
	switch t {
	case TypeInitialize:
		cmd = &InitializeCommand{}
	case TypeCreateSecondaryVault:
		cmd = &CreateSecondaryVaultCommand{}
	case TypeConfigureMainVault:
		cmd = &ConfigureMainVaultCommand{}
	case TypeConfigureSecondaryVault:
		cmd = &ConfigureSecondaryVaultCommand{}
	case TypeUpdatePrice:
		cmd = &UpdatePriceCommand{}
	case TypeStake:
		cmd = &StakeCommand{}
	case TypeUnstake:
		cmd = &UnstakeCommand{}
	case TypeTicketClaim:
		cmd = &TicketClaimCommand{}
	case TypeAttachStrategy:
		cmd = &AttachStrategyCommand{}
	case TypeTransferToStrategy:
		cmd = &TransferToStrategyCommand{}
	case TypeReturnFromStrategy:
		cmd = &ReturnFromStrategyCommand{}
	case TypeUpdateStrategyAmount:
		cmd = &UpdateStrategyAmountCommand{}
	case TypeSetTicketsTarget:
		cmd = &SetTicketsTargetCommand{}
	default:
		return nil, fmt.Errorf("unknown command type %q", t)
	}
	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return cmd, nil
}
