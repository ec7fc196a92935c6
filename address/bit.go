package address

func hasBit(n byte, pos uint) bool {
	return n&(1<<pos) != 0
}
