package earnings

const toneInstructions = `
You are analyzing an earnings call transcript or management commentary.

Based on the provided text, assess:
1. Management tone: Is management optimistic, cautious, neutral, or pessimistic about the business?
2. Confidence level: How confident do you feel in this assessment (high, medium, low)?

Consider language like:
- Optimistic: "strong growth", "exceeded expectations", "confident", "record"
- Cautious: "challenges", "headwinds", "uncertainty", "monitoring"
- Pessimistic: "decline", "deteriorating", "difficult", "declining margins"

Return only a JSON object like:
{
  "tone": "optimistic",
  "confidence": "high",
  "reasoning": "Brief explanation based on specific phrases"
}
`

const extractionInstructions = `
You are analyzing management commentary. Extract:

1. KEY POSITIVES (3-5): What positive developments, achievements, or favorable outlook did management highlight?
2. KEY CONCERNS (3-5): What challenges, risks, or headwinds did management mention?
3. FORWARD GUIDANCE: What specific guidance did management provide about:
   - Revenue outlook
   - Margin expectations
   - Capital expenditure plans
   - Other financial metrics
4. CAPACITY UTILIZATION: Any mentions of production capacity, staffing levels, or operational efficiency?
5. GROWTH INITIATIVES (2-3): New products, markets, or strategic initiatives mentioned?

Return a JSON object with this structure:
{
  "keyPositives": ["Item 1", "Item 2", "Item 3"],
  "keyConcerns": ["Concern 1", "Concern 2", "Concern 3"],
  "forwardGuidance": {
    "revenue": "Expected 5-10% growth in 2024",
    "margin": "Expecting margin expansion of 200 bps",
    "capex": "Capex will be 3-4% of revenue",
    "other": ["Debt reduction focus", "Share buyback program"]
  },
  "capacityUtilization": "Operating at 85% capacity, planning expansion",
  "growthInitiatives": ["Initiative 1", "Initiative 2"]
}

CRITICAL: Only extract information explicitly mentioned in the text. Do NOT infer or hallucinate information.
If something isn't mentioned, omit it or set to null.
`
