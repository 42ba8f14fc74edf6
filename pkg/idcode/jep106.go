package idcode

// jep106 maps the 11-bit identity code (continuation count in the upper
// bits, vendor ID in the lower seven) to the manufacturer name. Vendors
// commonly seen on scan chains; anything else reports its raw code.
var jep106 = map[uint16]string{
	0x001: "AMD",
	0x004: "Fujitsu",
	0x007: "Hitachi",
	0x009: "Intel",
	0x00E: "Freescale",
	0x010: "NEC",
	0x015: "NXP",
	0x017: "Texas Instruments",
	0x018: "Toshiba",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x029: "Microchip",
	0x034: "Cypress",
	0x041: "Infineon",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x070: "Qualcomm",
	0x23B: "ARM",
	0x489: "SiFive",
}
