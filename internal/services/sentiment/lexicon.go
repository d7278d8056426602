package sentiment

import "strings"

// Lexicon holds the weighted keyword lists used to score article text.
type Lexicon struct {
	Positive  []string
	Negative  []string
	Weights   map[string]float64
	Negations []string
	// NegationFactor divides the score once per negation word present.
	NegationFactor float64
	// Variants maps a base asset to the names news uses for it.
	Variants map[string][]string
}

// DefaultLexicon is the crypto news vocabulary.
func DefaultLexicon() Lexicon {
	weights := map[string]float64{}
	for _, k := range []string{"crash", "surge", "ban", "adoption", "partnership", "regulation"} {
		weights[k] = 2.0
	}
	for _, k := range []string{"bullish", "bearish", "rise", "fall", "increase", "decrease"} {
		weights[k] = 1.5
	}

	return Lexicon{
		Positive: []string{
			"bullish", "surge", "rally", "gain", "increase", "rise", "pump", "moon", "soar", "spike",
			"breakthrough", "breakout", "upward", "climb", "bounce", "recovery", "rebound",
			"optimistic", "positive", "confidence", "enthusiasm", "excitement", "momentum",
			"strong", "robust", "healthy", "solid", "stable",
			"adoption", "partnership", "integration", "collaboration", "alliance", "merger",
			"investment", "funding", "backing", "support", "endorsement",
			"upgrade", "update", "improvement", "enhancement", "innovation", "development",
			"launch", "release", "milestone", "achievement", "success",
			"institutional", "corporate", "enterprise", "mainstream", "traditional",
			"wall street", "bank", "financial institution",
		},
		Negative: []string{
			"bearish", "crash", "dump", "decline", "fall", "drop", "plunge", "collapse", "dip",
			"correction", "selloff", "slump", "tumble", "slide", "downward", "retreat",
			"fear", "uncertainty", "doubt", "panic", "concern", "worry", "anxiety",
			"weak", "unstable", "volatile", "risky", "dangerous",
			"regulation", "ban", "restriction", "prohibition", "crackdown", "investigation",
			"lawsuit", "legal action", "regulatory pressure", "compliance",
			"hack", "breach", "scam", "fraud", "theft", "exploit", "vulnerability",
			"manipulation", "bubble", "overvalued", "speculation", "warning", "alert",
			"risk", "threat", "challenge", "problem", "issue", "difficulty",
		},
		Weights:        weights,
		Negations:      []string{"not", "no", "never", "don't", "doesn't", "won't", "can't"},
		NegationFactor: 1.2,
		Variants: map[string][]string{
			"BTC":   {"bitcoin", "btc", "btcusdt"},
			"ETH":   {"ethereum", "eth", "ethusdt", "ether"},
			"BNB":   {"binance coin", "bnb", "bnbusdt"},
			"ADA":   {"cardano", "ada", "adausdt"},
			"DOT":   {"polkadot", "dot", "dotusdt"},
			"SOL":   {"solana", "sol", "solusdt"},
			"AVAX":  {"avalanche", "avax", "avaxusdt"},
			"MATIC": {"polygon", "matic", "maticusdt"},
			"DOGE":  {"dogecoin", "doge", "dogeusdt"},
			"XRP":   {"ripple", "xrp", "xrpusdt"},
		},
	}
}

func (l Lexicon) weight(keyword string) float64 {
	if w, ok := l.Weights[keyword]; ok {
		return w
	}
	return 1.0
}

// TextScore is the keyword reading of one piece of text.
type TextScore struct {
	Score      float64 // in [-1, 1]
	Confidence float64 // in [0.1, 1], zero when nothing matched
	Positive   float64
	Negative   float64
	Matches    int
}

// ScoreText counts weighted keyword occurrences. Text with no keyword yields a zero score and confidence.
func (l Lexicon) ScoreText(text string) TextScore {
	lower := strings.ToLower(text)
	words := len(strings.Fields(lower))

	var res TextScore
	for _, k := range l.Positive {
		if n := strings.Count(lower, k); n > 0 {
			res.Positive += float64(n) * l.weight(k)
			res.Matches += n
		}
	}
	for _, k := range l.Negative {
		if n := strings.Count(lower, k); n > 0 {
			res.Negative += float64(n) * l.weight(k)
			res.Matches += n
		}
	}
	if res.Matches == 0 {
		return res
	}

	boost := 1.0
	for _, neg := range l.Negations {
		if strings.Contains(lower, neg) {
			boost *= l.NegationFactor
		}
	}

	res.Score = (res.Positive - res.Negative) / (res.Positive + res.Negative) / boost

	density := float64(words) / 50
	if density < 1 {
		density = 1
	}
	conf := float64(res.Matches) / density * 0.5
	if conf > 1 {
		conf = 1
	}
	if conf < 0.1 {
		conf = 0.1
	}
	res.Confidence = conf
	return res
}

// SymbolVariants returns the lowercase names an article may use for the symbol.
func (l Lexicon) SymbolVariants(symbol string) []string {
	upper := strings.ToUpper(symbol)
	base := upper
	for _, quote := range []string{"USDT", "BUSD", "USDC"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			base = strings.TrimSuffix(upper, quote)
			break
		}
	}

	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.ToLower(v)
		if len(v) > 1 && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range l.Variants[base] {
		add(v)
	}
	add(base)
	add(upper)
	return out
}

var (
	headlinePositive = []string{"gain", "rise", "up", "bull", "positive", "growth", "adoption"}
	headlineNegative = []string{"fall", "down", "bear", "negative", "crash", "decline", "drop"}
)

// headlineTone reports whether a title carries a bullish or bearish keyword as a word prefix.
func headlineTone(title string) (pos, neg bool) {
	for _, w := range strings.FieldsFunc(strings.ToLower(title), notWordRune) {
		for _, k := range headlinePositive {
			if strings.HasPrefix(w, k) {
				pos = true
			}
		}
		for _, k := range headlineNegative {
			if strings.HasPrefix(w, k) {
				neg = true
			}
		}
	}
	return pos, neg
}

func notWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
}

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by from up about into
		through during before after above below between among throughout despite towards upon is are
		was were be been being have has had do does did will would could should may might must crypto
		cryptocurrency bitcoin news today new latest this that what`) {
		stopwords[w] = true
	}
}
