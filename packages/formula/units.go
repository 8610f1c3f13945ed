package formula

import (
	"math"
)

type unitKind uint8

const (
	unitMass unitKind = iota + 1
	unitDistance
	unitTime
	unitPressure
	unitForce
	unitEnergy
	unitPower
	unitMagnetism
	unitTemperature
	unitVolume
	unitArea
	unitInformation
	unitSpeed
)

// unit is one CONVERT unit. factor is the size in the kind's base unit
// (gram, metre, second, ...). prefixable units accept metric prefixes,
// raised to power for squared and cubed units.
type unit struct {
	kind       unitKind
	factor     float64
	prefixable bool
	power      int
}

var units = map[string]unit{
	// mass, grams
	"g":        {unitMass, 1, true, 1},
	"sg":       {unitMass, 14593.902937206364, false, 1},
	"lbm":      {unitMass, 453.59237, false, 1},
	"u":        {unitMass, 1.66053906660e-24, true, 1},
	"ozm":      {unitMass, 28.349523125, false, 1},
	"grain":    {unitMass, 0.06479891, false, 1},
	"cwt":      {unitMass, 45359.237, false, 1},
	"shweight": {unitMass, 45359.237, false, 1},
	"uk_cwt":   {unitMass, 50802.34544, false, 1},
	"lcwt":     {unitMass, 50802.34544, false, 1},
	"hweight":  {unitMass, 50802.34544, false, 1},
	"stone":    {unitMass, 6350.29318, false, 1},
	"ton":      {unitMass, 907184.74, false, 1},
	"uk_ton":   {unitMass, 1016046.9088, false, 1},
	"LTON":     {unitMass, 1016046.9088, false, 1},
	"brton":    {unitMass, 1016046.9088, false, 1},

	// distance, metres
	"m":         {unitDistance, 1, true, 1},
	"mi":        {unitDistance, 1609.344, false, 1},
	"Nmi":       {unitDistance, 1852, false, 1},
	"in":        {unitDistance, 0.0254, false, 1},
	"ft":        {unitDistance, 0.3048, false, 1},
	"yd":        {unitDistance, 0.9144, false, 1},
	"ang":       {unitDistance, 1e-10, true, 1},
	"ell":       {unitDistance, 1.143, false, 1},
	"ly":        {unitDistance, 9460730472580800, true, 1},
	"parsec":    {unitDistance, 30856775814671916, true, 1},
	"pc":        {unitDistance, 30856775814671916, true, 1},
	"Picapt":    {unitDistance, 0.0254 / 72, false, 1},
	"Pica":      {unitDistance, 0.0254 / 72, false, 1},
	"pica":      {unitDistance, 0.0254 / 6, false, 1},
	"survey_mi": {unitDistance, 1609.3472186944373, false, 1},

	// time, seconds
	"yr":  {unitTime, 31557600, false, 1},
	"day": {unitTime, 86400, false, 1},
	"d":   {unitTime, 86400, false, 1},
	"hr":  {unitTime, 3600, false, 1},
	"mn":  {unitTime, 60, false, 1},
	"min": {unitTime, 60, false, 1},
	"sec": {unitTime, 1, true, 1},
	"s":   {unitTime, 1, true, 1},

	// pressure, pascals
	"Pa":   {unitPressure, 1, true, 1},
	"p":    {unitPressure, 1, true, 1},
	"atm":  {unitPressure, 101325, true, 1},
	"at":   {unitPressure, 101325, true, 1},
	"mmHg": {unitPressure, 133.322368421053, true, 1},
	"psi":  {unitPressure, 6894.75729316836, false, 1},
	"Torr": {unitPressure, 133.322368421053, false, 1},

	// force, newtons
	"N":    {unitForce, 1, true, 1},
	"dyn":  {unitForce, 1e-5, true, 1},
	"dy":   {unitForce, 1e-5, true, 1},
	"lbf":  {unitForce, 4.4482216152605, false, 1},
	"pond": {unitForce, 0.00980665, true, 1},

	// energy, joules
	"J":   {unitEnergy, 1, true, 1},
	"e":   {unitEnergy, 1e-7, true, 1},
	"c":   {unitEnergy, 4.184, true, 1},
	"cal": {unitEnergy, 4.1868, true, 1},
	"eV":  {unitEnergy, 1.602176634e-19, true, 1},
	"ev":  {unitEnergy, 1.602176634e-19, true, 1},
	"HPh": {unitEnergy, 2684519.537696173, false, 1},
	"hh":  {unitEnergy, 2684519.537696173, false, 1},
	"Wh":  {unitEnergy, 3600, true, 1},
	"wh":  {unitEnergy, 3600, true, 1},
	"flb": {unitEnergy, 1.3558179483314004, false, 1},
	"BTU": {unitEnergy, 1055.05585262, false, 1},
	"btu": {unitEnergy, 1055.05585262, false, 1},

	// power, watts
	"HP": {unitPower, 745.69987158227022, false, 1},
	"h":  {unitPower, 745.69987158227022, false, 1},
	"PS": {unitPower, 735.49875, false, 1},
	"W":  {unitPower, 1, true, 1},
	"w":  {unitPower, 1, true, 1},

	// magnetism, teslas
	"T":  {unitMagnetism, 1, true, 1},
	"ga": {unitMagnetism, 1e-4, true, 1},

	// temperature, kelvin
	"C":    {unitTemperature, 1, false, 1},
	"cel":  {unitTemperature, 1, false, 1},
	"F":    {unitTemperature, 5.0 / 9, false, 1},
	"fah":  {unitTemperature, 5.0 / 9, false, 1},
	"K":    {unitTemperature, 1, true, 1},
	"kel":  {unitTemperature, 1, true, 1},
	"Rank": {unitTemperature, 5.0 / 9, false, 1},
	"Reau": {unitTemperature, 1.25, false, 1},

	// volume, cubic metres
	"l":      {unitVolume, 1e-3, true, 1},
	"L":      {unitVolume, 1e-3, true, 1},
	"lt":     {unitVolume, 1e-3, true, 1},
	"tsp":    {unitVolume, 4.92892159375e-6, false, 1},
	"tspm":   {unitVolume, 5e-6, false, 1},
	"tbs":    {unitVolume, 1.478676478125e-5, false, 1},
	"oz":     {unitVolume, 2.95735295625e-5, false, 1},
	"cup":    {unitVolume, 2.365882365e-4, false, 1},
	"pt":     {unitVolume, 4.73176473e-4, false, 1},
	"us_pt":  {unitVolume, 4.73176473e-4, false, 1},
	"uk_pt":  {unitVolume, 5.6826125e-4, false, 1},
	"qt":     {unitVolume, 9.46352946e-4, false, 1},
	"uk_qt":  {unitVolume, 1.1365225e-3, false, 1},
	"gal":    {unitVolume, 3.785411784e-3, false, 1},
	"uk_gal": {unitVolume, 4.54609e-3, false, 1},
	"m3":     {unitVolume, 1, true, 3},
	"ang3":   {unitVolume, 1e-30, true, 3},
	"barrel": {unitVolume, 0.158987294928, false, 1},
	"bushel": {unitVolume, 0.03523907016688, false, 1},
	"ft3":    {unitVolume, 0.028316846592, false, 1},
	"in3":    {unitVolume, 1.6387064e-5, false, 1},
	"yd3":    {unitVolume, 0.764554857984, false, 1},
	"mi3":    {unitVolume, 4168181825.440579584, false, 1},
	"MTON":   {unitVolume, 1.13267386368, false, 1},
	"GRT":    {unitVolume, 2.8316846592, false, 1},
	"regton": {unitVolume, 2.8316846592, false, 1},

	// area, square metres
	"m2":      {unitArea, 1, true, 2},
	"ha":      {unitArea, 1e4, false, 1},
	"ar":      {unitArea, 100, true, 1},
	"uk_acre": {unitArea, 4046.8564224, false, 1},
	"us_acre": {unitArea, 4046.872609874252, false, 1},
	"ft2":     {unitArea, 0.09290304, false, 1},
	"in2":     {unitArea, 6.4516e-4, false, 1},
	"yd2":     {unitArea, 0.83612736, false, 1},
	"mi2":     {unitArea, 2589988.110336, false, 1},
	"Nmi2":    {unitArea, 3429904, false, 1},
	"ang2":    {unitArea, 1e-20, true, 2},
	"Morgen":  {unitArea, 2500, false, 1},

	// information, bits
	"bit":  {unitInformation, 1, true, 1},
	"byte": {unitInformation, 8, true, 1},

	// speed, metres per second
	"m/s":   {unitSpeed, 1, true, 1},
	"m/sec": {unitSpeed, 1, true, 1},
	"m/h":   {unitSpeed, 1.0 / 3600, true, 1},
	"m/hr":  {unitSpeed, 1.0 / 3600, true, 1},
	"mph":   {unitSpeed, 0.44704, false, 1},
	"kn":    {unitSpeed, 0.5144444444444445, false, 1},
	"admkn": {unitSpeed, 0.5147733333333333, false, 1},
}

var metricPrefixes = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9,
	"M": 1e6, "k": 1e3, "h": 1e2, "da": 1e1, "e": 1e1, "d": 1e-1,
	"c": 1e-2, "m": 1e-3, "u": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
	"a": 1e-18, "z": 1e-21, "y": 1e-24,
}

var binaryPrefixes = map[string]float64{
	"ki": 1 << 10, "Mi": 1 << 20, "Gi": 1 << 30, "Ti": 1 << 40,
	"Pi": 1 << 50, "Ei": 1 << 60, "Zi": math.Pow(2, 70), "Yi": math.Pow(2, 80),
}

// lookupUnit resolves a unit name, trying an exact match before splitting
// off a metric or binary prefix. names are case-sensitive.
func lookupUnit(name string) (unit, bool) {
	if u, ok := units[name]; ok {
		return u, true
	}
	for _, n := range []int{2, 1} {
		if len(name) <= n {
			continue
		}
		prefix, rest := name[:n], name[n:]
		base, ok := units[rest]
		if !ok || !base.prefixable {
			continue
		}
		scale, ok := metricPrefixes[prefix]
		if base.kind == unitInformation {
			if b, isBinary := binaryPrefixes[prefix]; isBinary {
				scale, ok = b, true
			}
		}
		if !ok {
			continue
		}
		base.factor *= math.Pow(scale, float64(base.power))
		return base, true
	}
	return unit{}, false
}

// temperatureOffsets holds the kelvin offset of temperature scales that
// do not start at absolute zero. kelvin = x*factor + offset.
var temperatureOffsets = map[string]float64{
	"C":    273.15,
	"cel":  273.15,
	"F":    273.15 - 32*5.0/9,
	"fah":  273.15 - 32*5.0/9,
	"Reau": 273.15,
}

// convertUnits converts x between two resolved units of the same kind.
func convertUnits(x float64, from, to string, fu, tu unit) float64 {
	base := x*fu.factor + temperatureOffsets[from]
	return (base - temperatureOffsets[to]) / tu.factor
}
