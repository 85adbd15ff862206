package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"
)

// Logger module tags.
const (
	ModuleChatService     = "CHAT_SERVICE"
	ModuleTopicService    = "TOPIC_SERVICE"
	ModuleRoadmapService  = "ROADMAP_SERVICE"
	ModuleThreadService   = "THREAD_SERVICE"
	ModuleConsumerService = "CONSUMER_SERVICE"
)

const TopicSuggestionPromptV1 = `You are an expert at creating comprehensive programming topic hierarchies.
Current topic: %s
Previously explored topics: %s

Suggest related subtopics that:
1. Are logically related to the current topic
2. Have not been covered in the previously explored topics
3. Provide a natural progression in complexity

Return one topic name per line, title case, maximum 5 words each, nothing else.`

const RoadmapGenerationPromptV1 = `You are an expert learning path designer for programming topics.

Your task is to create a comprehensive, hierarchical learning roadmap for: %s

Generate a structured learning path with:
- 3-5 main categories (e.g. Fundamentals, Core Concepts, Advanced Topics)
- 3-6 subtopics per category
- Clear difficulty progression (beginner to advanced)
- Each node must have:
  * title: concise name (2-5 words)
  * description: what you will learn (1-2 sentences, max 150 characters)
  * difficulty: 0 (beginner), 1 (intermediate) or 2 (advanced)

Keep the tree 2-3 levels deep maximum and order topics so prerequisites come
first.

Return ONLY valid JSON in this exact format:
{
  "title": "Master the topic",
  "description": "Complete learning path",
  "categories": [
    {
      "title": "Category Name",
      "description": "What this category covers",
      "difficulty": 0,
      "topics": [
        {"title": "Topic Name", "description": "What you'll learn here", "difficulty": 0}
      ]
    }
  ]
}`
