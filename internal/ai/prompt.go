package ai

import "fmt"

const locatePrompt = `You locate elements on web forms for a browser automation tool. The forms are often Chinese-language surveys built with UI kits such as Ant Design, Element UI, Vant, TDesign or select2.

You will receive:
1. A page map with the URL, title and visible interactive elements (selector, type, text, label, placeholder, options)
2. A task naming the element to act on

Answer with a single JSON object:
{"selector": "<CSS selector from the page map>", "reason": "<a few words>"}

If no element in the page map fits the task, answer {"selector": "", "reason": "<why>"}.

Guidelines:
- Use only selectors from the provided page map
- Prefer the control itself (input, select, button) over its label or wrapper
- Treat full-width and half-width characters as equal
- Respond ONLY with the JSON object, no explanation or markdown.`

const deepSuffix = `

A previous attempt on this task failed. Look more carefully: a screenshot of the viewport is attached, labels may be paraphrased, and the control may sit in the same question block as the description rather than next to it. Return the most likely element, and an empty selector only when you are certain none fits.`

const assertPrompt = `You check whether a condition holds on a web page. You will receive a page map and a condition.

Answer with a single JSON object:
{"satisfied": true|false, "reason": "<a few words>"}

Respond ONLY with the JSON object, no explanation or markdown.`

const actPrompt = `You are a browser automation script generator. Convert one natural language instruction into a short list of browser actions.

You will receive:
1. A page map containing the URL, title and available interactive elements
2. The instruction

Output a JSON array of actions. Each action has:
- "action": one of "click", "type", "select", "press", "scroll", "wait"
- "selector": CSS selector for the target element (required for click, type, select)
- "text": text to type, option to select, or key to press
- "wait": milliseconds to wait after the action (optional)

Guidelines:
- Use only selectors from the provided page map
- Keep the sequence minimal but complete; most instructions need one to three actions
- For custom dropdowns, click the trigger, then click the option

Example output:
[
  {"action": "click", "selector": "#city-trigger", "wait": 300},
  {"action": "click", "selector": "li.option-beijing"}
]

Respond ONLY with the JSON array, no explanation or markdown.`

func buildUserPrompt(pageMapJSON string, task string) string {
	return "Page map:\n" + pageMapJSON + "\n\nTask: " + task
}

func tapTask(description string) string {
	return fmt.Sprintf("Find the element to click for: %s", description)
}

func inputTask(description, value string) string {
	return fmt.Sprintf("Find the text field to type %q into, described as: %s", value, description)
}

func selectTask(description, option string) string {
	return fmt.Sprintf("Find the dropdown described as %q in which option %q should be chosen. Return the native <select> if there is one, otherwise the element that opens the dropdown.", description, option)
}

func optionTask(option string) string {
	return fmt.Sprintf("The dropdown is open. Find the visible option labelled %q.", option)
}

func scrollTask(description string) string {
	return fmt.Sprintf("Find the element to scroll into view: %s", description)
}
