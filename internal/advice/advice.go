// Package advice answers free-text farming questions from a fixed keyword
// table.
package advice

import "strings"

// topic answers any message containing one of its keywords.
type topic struct {
	keywords []string
	answer   string
}

// topics are matched in order; the first hit wins. Keywords match as
// substrings of the lower-cased message, so "ph" must come after "phosphorus".
var topics = []topic{
	{
		keywords: []string{"nitrogen"},
		answer:   "Nitrogen is crucial for plant growth and leaf development. Signs of deficiency include yellowing leaves (chlorosis). To boost nitrogen: use urea (46-0-0), ammonium sulfate, or organic sources like compost. Apply during active growing seasons for best results.",
	},
	{
		keywords: []string{"phosphorus"},
		answer:   "Phosphorus promotes strong root development and flowering. Deficiency shows as purple leaf discoloration and poor root systems. Recommended sources: triple superphosphate (0-46-0), bone meal, or rock phosphate. Apply before planting for root establishment.",
	},
	{
		keywords: []string{"potassium"},
		answer:   "Potassium enhances disease resistance and water regulation. Low levels cause leaf edge burning and weak stems. Use muriate of potash (0-0-60), potassium sulfate, or wood ash. Essential during fruit development and stress periods.",
	},
	{
		keywords: []string{"ph", "acid"},
		answer:   "Soil pH affects nutrient availability. Most crops prefer 6.0-7.0 pH. To raise pH: apply agricultural lime. To lower pH: use elemental sulfur or organic matter. Test pH regularly as it changes slowly over time.",
	},
	{
		keywords: []string{"organic matter", "compost"},
		answer:   "Organic matter improves soil structure, water retention, and nutrient cycling. Aim for 3-5% organic matter. Add compost, well-aged manure, cover crops, or crop residues. This is the foundation of healthy soil biology.",
	},
	{
		keywords: []string{"crop", "plant"},
		answer:   "Crop selection depends on soil fertility and conditions. High fertility soils support demanding crops like corn, tomatoes, and peppers. Medium fertility works for beans, carrots, and leafy greens. Low fertility suits legumes and cover crops that improve soil.",
	},
	{
		keywords: []string{"fertilizer"},
		answer:   "Choose fertilizers based on soil test results. NPK numbers show nitrogen-phosphorus-potassium ratios. Organic options include compost and manure. Synthetic options provide quick nutrient release. Always follow application rates to avoid over-fertilization.",
	},
	{
		keywords: []string{"moisture", "water"},
		answer:   "Proper soil moisture is essential for nutrient uptake. Most crops need 40-60% soil moisture. Too little causes stress; too much can cause root rot. Improve water retention with organic matter and proper mulching.",
	},
	{
		keywords: []string{"temperature"},
		answer:   "Soil temperature affects root growth and nutrient availability. Optimal range is 18-24°C for most crops. Cold soils slow nutrient uptake. Use mulch to moderate temperature and protect roots from extreme conditions.",
	},
	{
		keywords: []string{"pest", "insect"},
		answer:   "Integrated Pest Management (IPM) combines biological, cultural, and chemical controls. Monitor regularly, encourage beneficial insects, rotate crops, and use targeted treatments only when necessary. Healthy soil often means fewer pest problems.",
	},
	{
		keywords: []string{"disease"},
		answer:   "Plant diseases often indicate soil imbalances or poor drainage. Improve soil health with organic matter, ensure proper spacing for air circulation, rotate crops annually, and choose disease-resistant varieties when possible.",
	},
	{
		keywords: []string{"spring"},
		answer:   "Spring preparation: Test soil pH and nutrients, add compost or aged manure, prepare seedbeds when soil is workable (not too wet), and plan crop rotations. Start with cool-season crops before warm-season planting.",
	},
	{
		keywords: []string{"fall", "autumn"},
		answer:   "Fall activities: Plant cover crops to protect soil, add organic matter, collect soil samples for testing, clean up crop residues, and plan next year's garden layout. Fall is ideal for soil amendments.",
	},
	{
		keywords: []string{"organic"},
		answer:   "Organic farming focuses on soil health through natural methods. Use compost, cover crops, beneficial insects, and crop rotation. Avoid synthetic chemicals and build long-term soil fertility through biological processes.",
	},
	{
		keywords: []string{"irrigation"},
		answer:   "Efficient irrigation conserves water and prevents disease. Water deeply but less frequently to encourage deep roots. Use drip irrigation or soaker hoses when possible. Water early morning to reduce evaporation and disease risk.",
	},
}

// DefaultAnswer is returned when no topic matches.
const DefaultAnswer = "I can help you with soil fertility questions, fertilizer recommendations, crop selection, pH management, organic matter improvement, pest control, seasonal planning, and general farming advice. What specific aspect would you like to know more about?"

// Respond returns the canned answer for the first topic the message mentions.
func Respond(message string) string {
	lower := strings.ToLower(message)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.answer
			}
		}
	}
	return DefaultAnswer
}
