package permission

// Mask64 is a set of independent capability flags, one per bit.
type Mask64 uint64

// ExternalPermission marks an account as exempt from the ledger's fee rule.
// It is always bit 0 of the catalog.
const ExternalPermission Mask64 = 1 << 0

// ExternalPermissionName is the catalog name of [ExternalPermission].
const ExternalPermissionName = "EXTERNAL_PERMISSION"

func (m *Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (*m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= (1 << bit)
}

func (m *Mask64) Raw() uint64 {
	return uint64(*m)
}

// Apply returns (m &^ revoke) | grant. A bit present in both grant and revoke
// ends up set.
func (m Mask64) Apply(grant, revoke Mask64) Mask64 {
	return (m &^ revoke) | grant
}

// Contains reports whether every bit of flags is set in m. An empty flags
// mask is never contained.
func (m Mask64) Contains(flags Mask64) bool {
	return flags != 0 && m&flags == flags
}
