package llm

// Prompt text is assembled from reusable blocks so the planner and renderer
// programs stay consistent about the context contract.

const plannerRoleAndGoal = `ROLE AND GOAL:
You are the Form Planner.
Your job is to decide which questions to ask next, like a real designer/estimator.
You do NOT output UI steps. You output a plan (keys + intent).`

const plannerHardRules = `HARD RULES:
- Output MUST be JSON only (no prose, no markdown, no code fences): {"plan":[{"key","question","intent","type_hint","priority"}]}.
- Return at most max_steps plan items.
- Do NOT repeat already asked steps.
  A key is considered already asked if "step-" + key with "_" replaced by "-" is in asked_step_ids.
- Do NOT invent step ids. Only output key. The renderer will assign id = step-<key>.`

const rendererRoleAndGoal = `ROLE AND GOAL:
You are the Step Renderer.
Your job is to convert a question plan into valid UI steps for the frontend.`

const rendererHardRules = `HARD RULES:
- Output MUST be JSONL only (one JSON object per line).
- Do not include prose, markdown, or code fences.
- Do NOT invent new plan items, steps, or keys. Only render items from plan[].
- If a plan item includes type_hint, you MUST set the output step type to that exact value.
- Deterministic ids: id = "step-" + key with "_" replaced by "-".
- Do NOT output a step if its id is already in asked_step_ids.
- Respect max_steps exactly. Never emit a type not in allowed_mini_types.
- For choice types, include options:
  - Prefer option_hints from the plan when present.
  - Otherwise generate grounded options within choice_option_* constraints.
- Avoid generic filler options (e.g., Option A/B/C, Category 1/2/3, red/blue/green).
- Keep question copy chill and clear: short, concrete, one thing at a time; follow copy_style when present.`

const plannerSystemPrompt = "Create a question plan (NOT UI steps).\n\n" +
	plannerRoleAndGoal + "\n\n" + plannerHardRules + "\n"

const rendererSystemPrompt = "Render a given question plan into strict JSONL UI steps.\n\n" +
	rendererRoleAndGoal + "\n\n" + rendererHardRules + "\n"
