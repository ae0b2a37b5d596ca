package engine

import (
	"fmt"
	"strings"
)

// Prompt builders for the orchestrator's own LLM calls. Character and
// world own the prompts for their internal rewrites; everything that
// crosses component boundaries is composed here.

const (
	labelReply         = "Reply"
	labelThoughtChange = "Thought change"
	labelSuggestions   = "Suggestions"
	labelTask          = "Task"
	labelReward        = "Reward"
)

func scenePrompt(characterInfo, worldContext string) string {
	var sb strings.Builder
	sb.WriteString(worldContext)
	sb.WriteString("\n\n")
	sb.WriteString(characterInfo)
	sb.WriteString("\n\nDescribe the opening scene of this story in the third person, ")
	sb.WriteString("in the style of a well-written serial novel. Mention the protagonist ")
	sb.WriteString("by name so the player knows who they are following. Do not reveal ")
	sb.WriteString("anything from hidden sections. Keep it under 300 words.")
	return sb.String()
}

func communicatePrompt(summaries []string, characterInfo string, tasks []string, dialogue string, message string) string {
	var sb strings.Builder
	if len(summaries) > 0 {
		sb.WriteString("[Earlier Conversation Summaries]\n")
		sb.WriteString(strings.Join(summaries, "\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString(characterInfo)
	if len(tasks) > 0 {
		sb.WriteString("\n\n[Current Tasks]\n")
		sb.WriteString(strings.Join(tasks, "\n"))
	}
	if dialogue != "" {
		sb.WriteString("\n\n[Recent Dialogue]\n")
		sb.WriteString(dialogue)
	}
	sb.WriteString("\n\n[Incoming Message From The System]\n")
	sb.WriteString(message)
	sb.WriteString("\n\nReply in character, staying consistent with the profile, the recent ")
	sb.WriteString("dialogue and the current state of mind, and update the character's ")
	sb.WriteString("inner state. Respond in exactly this format:\n")
	sb.WriteString("[" + labelReply + "]: ...\n")
	sb.WriteString("[" + labelThoughtChange + "]: ...")
	return sb.String()
}

func classifyModificationPrompt(modification string) string {
	return "Classify this requested change as targeting either the world " +
		"(environment, places, factions, items at large) or the character " +
		"(the protagonist's own traits, possessions, abilities).\n\n" +
		"Change: " + modification + "\n\n" +
		"Answer with the single word \"world\" or \"character\"."
}

func energyCostPrompt(modification string, energy float64) string {
	return fmt.Sprintf("Estimate the energy cost of this reality-altering change "+
		"as a number from 1 to 100, where 1 is a trivial nudge and 100 rewrites "+
		"the fabric of the story.\n\nChange: %s\nEnergy remaining: %.0f\n\n"+
		"Return only the number.", modification, energy)
}

func queryPrompt(query, worldContext string) string {
	var sb strings.Builder
	sb.WriteString("[Query]\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString(worldContext)
	sb.WriteString("\n\nAnswer the query from the information above. If the world state ")
	sb.WriteString("does not settle the answer, decide it now in a way consistent with ")
	sb.WriteString("the background, and state it as fact.")
	return sb.String()
}

func advanceStoryPrompt(characterInfo, worldContext string, actions []string, timeSpan string) string {
	var sb strings.Builder
	sb.WriteString(worldContext)
	sb.WriteString("\n\n")
	sb.WriteString(characterInfo)
	sb.WriteString("\n\n[Candidate Actions]\n")
	for i, a := range actions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, a))
	}
	sb.WriteString("\nChoose the most plausible action and narrate one beat of story ")
	sb.WriteString("progress, not exceeding " + timeSpan + " of in-world time. ")
	sb.WriteString("Describe the action unfolding directly instead of naming a choice. ")
	sb.WriteString("Write in the third person, mentioning the protagonist by name at ")
	sb.WriteString("least once, in the style of a well-written serial novel, with ")
	sb.WriteString("interiority and environment where they earn their place. ")
	sb.WriteString("Keep it under 300 words. Optionally end with a\n")
	sb.WriteString("[" + labelSuggestions + "]: ...\n")
	sb.WriteString("line offering the player follow-up directions.")
	return sb.String()
}

func summaryPrompt(dialogue string) string {
	return "Summarize the main content of this conversation in under 100 words:\n\n" +
		dialogue + "\n\nReturn only the summary."
}

func formatTaskPrompt(description string) string {
	return "Format this task for the protagonist and propose a fitting reward:\n\n" +
		description + "\n\nRespond in exactly this format:\n" +
		"[" + labelTask + "]: ...\n[" + labelReward + "]: ..."
}

func detectTaskPrompt(message string) string {
	return "Decide whether this message assigns a task: a concrete goal, demand " +
		"or request directed at the protagonist.\n\n" + message + "\n\n" +
		"If it does, respond in exactly this format:\n" +
		"[" + labelTask + "]: ...\n[" + labelReward + "]: ...\n" +
		"If it does not, respond with the single word \"none\"."
}

func taskCompletionPrompt(description, context string) string {
	return "[Task]\n" + description + "\n\n[Narrative Context]\n" + context +
		"\n\nHas the task been completed in the narrative above? " +
		"Answer with exactly \"completed\" or \"not completed\"."
}

const helpText = `Commands:
  /start              begin the story and describe the opening scene
  /advance <span>     advance the story by a time span (e.g. 30m, 1d, 2w, "three days")
  /modify <change>    spend energy to edit the world or the protagonist
  /query <question>   ask the game master about the world state
  /task <goal>        issue a task to the protagonist
  /accept <n>         protagonist accepts pending task n
  /reject <n>         protagonist rejects pending task n
  /sum                summarize and fold the dialogue so far
  /save [-f] [name]   save the session (default slot always overwrites)
  /load [name]        load a saved session
  /saves              list saved sessions
  /stories            list available stories
  /switch <story>     switch to another story (resets the session)
  /reset              restart the current story
  /help               this message
Anything else is spoken to the protagonist.`
