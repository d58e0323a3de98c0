package traindata

// DefaultPairs covers the Guangdong intercity (GDCJ) corridors the scraper
// tracks. Directed pairs: both travel directions are queried.
var DefaultPairs = []StationPair{
	{From: "Guangzhou East", To: "Dongguan"},
	{From: "Dongguan", To: "Guangzhou East"},
	{From: "Guangzhou East", To: "Shenzhen"},
	{From: "Shenzhen", To: "Guangzhou East"},
	{From: "Guangzhou", To: "Foshan West"},
	{From: "Foshan West", To: "Guangzhou"},
	{From: "Guangzhou North", To: "Qingyuan"},
	{From: "Qingyuan", To: "Guangzhou North"},
	{From: "Xiaojin", To: "Huadu"},
	{From: "Huadu", To: "Xiaojin"},
}
