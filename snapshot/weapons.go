package snapshot

// weaponClasses maps m_iItemDefinitionIndex values to delay categories.
var weaponClasses = map[int32]WeaponClass{
	1: Pistols, 2: Pistols, 3: Pistols, 4: Pistols, 30: Pistols,
	32: Pistols, 36: Pistols, 61: Pistols, 63: Pistols, 64: Pistols,
	7: Rifles, 8: Rifles, 10: Rifles, 13: Rifles, 16: Rifles, 39: Rifles, 60: Rifles,
	9: Snipers, 11: Snipers, 38: Snipers, 40: Snipers,
	17: SMGs, 19: SMGs, 23: SMGs, 24: SMGs, 26: SMGs, 33: SMGs, 34: SMGs,
	14: Heavy, 25: Heavy, 27: Heavy, 28: Heavy, 35: Heavy,
}

// ClassifyWeapon buckets an item definition index; unknown weapons fall back
// to Rifles.
func ClassifyWeapon(itemDefIndex int32) WeaponClass {
	if c, ok := weaponClasses[itemDefIndex]; ok {
		return c
	}
	return Rifles
}
